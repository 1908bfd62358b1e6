package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worldgraph/ace/internal/resilience"
	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/types"
)

// Compile-time interface check.
var _ graph.Adapter = (*Store)(nil)

// Store is the PostgreSQL-backed [graph.Adapter]. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	breaker *resilience.CircuitBreaker
}

// NewStore opens a connection pool to dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("graph postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("graph postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("graph postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("graph postgres: migrate: %w", err)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "graph-postgres",
	})
	return &Store{pool: pool, breaker: breaker}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// retry wraps an adapter call with the bounded-retry policy required by
// §4.2: up to 3 tries, exponential backoff from 100ms, for transient
// connection errors only. Deadlocks get exactly one extra try. Constraint
// violations and context cancellation are never retried.
//
// The whole retry loop is then gated by s.breaker: once the pool is
// failing consistently, further calls short-circuit with [resilience.ErrCircuitOpen]
// instead of burning another 3-attempt backoff sequence against a backend
// that's already down.
func (s *Store) retry(ctx context.Context, name string, fn func() error) error {
	deadlockRetried := false

	classify := func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case isConstraintViolation(pgErr):
				return false
			case pgErr.Code == "40P01": // deadlock_detected
				if deadlockRetried {
					return false
				}
				deadlockRetried = true
				return true
			}
		}
		return true
	}

	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			Name:        name,
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
		}, classify, fn)
	})

	return classifyPgError(ctx, name, err)
}

func isConstraintViolation(pgErr *pgconn.PgError) bool {
	// 23xxx = integrity_constraint_violation class.
	return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}

func classifyPgError(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return types.NewError(types.KindCancelled, name+" cancelled", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isConstraintViolation(pgErr) {
			return types.NewError(types.KindSchemaError, name+": constraint violation", err)
		}
	}

	var ace *types.Error
	if errors.As(err, &ace) {
		return ace
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.KindBackendTimeout, name+" timed out", err)
	}
	return types.NewError(types.KindBackendUnavailable, name+" failed", err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
