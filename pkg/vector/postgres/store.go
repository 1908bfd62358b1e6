package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/worldgraph/ace/internal/resilience"
	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/vector"
)

var _ vector.Adapter = (*Store)(nil)

// Store is the pgvector-backed [vector.Adapter]. Embed calls are delegated
// to an [llm.Provider] rather than performed locally.
type Store struct {
	pool     *pgxpool.Pool
	provider llm.Provider
	breaker  *resilience.CircuitBreaker
}

// NewStore opens a connection pool to dsn, registers pgvector's scan types,
// runs [Migrate] for the given embedding dimension, and wires provider as
// the Embed delegate.
func NewStore(ctx context.Context, dsn string, dim int, provider llm.Provider) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vector postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vector postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dim); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vector postgres: migrate: %w", err)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "vector-postgres",
	})
	return &Store{pool: pool, provider: provider, breaker: breaker}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Embed implements [vector.Adapter] by delegating to the LM Adapter.
func (s *Store) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return llm.Embed(ctx, s.provider, texts)
}

// Upsert implements [vector.Adapter].
func (s *Store) Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("vector postgres: marshal metadata: %w", err)
	}

	const stmt = `
		INSERT INTO chunks (id, collection, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (collection, id) DO UPDATE SET
		    embedding  = EXCLUDED.embedding,
		    metadata   = EXCLUDED.metadata,
		    updated_at = now()`

	return s.retry(ctx, "upsert chunk", func() error {
		_, err := s.pool.Exec(ctx, stmt, id, collection, pgvector.NewVector(vec), metaJSON)
		return err
	})
}

// Search implements [vector.Adapter]: cosine distance (<=>) converted to a
// similarity score of 1 - distance, sorted descending, truncated at k and
// minScore.
func (s *Store) Search(ctx context.Context, collection string, queryVec []float32, k int, minScore float64) ([]vector.Hit, error) {
	if k <= 0 {
		k = 10
	}

	const q = `
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM   chunks
		WHERE  collection = $2
		ORDER  BY embedding <=> $1
		LIMIT  $3`

	var hits []vector.Hit
	err := s.retry(ctx, "search chunks", func() error {
		rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), collection, k)
		if err != nil {
			return err
		}
		defer rows.Close()

		hits = nil
		for rows.Next() {
			var (
				id        string
				metaJSON  []byte
				score     float64
			)
			if err := rows.Scan(&id, &metaJSON, &score); err != nil {
				return err
			}
			if score < minScore {
				continue
			}
			metadata := map[string]any{}
			if len(metaJSON) > 0 {
				if err := json.Unmarshal(metaJSON, &metadata); err != nil {
					return fmt.Errorf("unmarshal chunk metadata: %w", err)
				}
			}
			hits = append(hits, vector.Hit{ID: id, Score: score, Metadata: metadata})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []vector.Hit{}
	}
	return hits, nil
}

// retry is gated by s.breaker the same way the graph store's retry is: a
// consistently failing pool trips the breaker instead of retrying forever.
func (s *Store) retry(ctx context.Context, name string, fn func() error) error {
	return s.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			Name:        name,
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
		}, func(err error) bool { return ctx.Err() == nil }, fn)
	})
}
