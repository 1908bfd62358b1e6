// Package postgres provides a PostgreSQL-backed implementation of
// [graph.Adapter], using a recursive-CTE property graph over two tables
// (entities, relations). pgx/v5 is used directly rather than an ORM so that
// every query the adapter runs is visible and auditable in one place.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlGraph = `
CREATE TABLE IF NOT EXISTS entities (
    canonical_id TEXT         PRIMARY KEY,
    type         TEXT         NOT NULL,
    properties   JSONB        NOT NULL DEFAULT '{}',
    merged_from  TEXT[]       NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities ((properties->>'name'));
CREATE INDEX IF NOT EXISTS idx_entities_name_trgm ON entities USING GIN ((properties->>'name') gin_trgm_ops);

CREATE TABLE IF NOT EXISTS relations (
    from_id     TEXT         NOT NULL REFERENCES entities (canonical_id) ON DELETE CASCADE,
    rel_type    TEXT         NOT NULL,
    to_id       TEXT         NOT NULL REFERENCES entities (canonical_id) ON DELETE CASCADE,
    properties  JSONB        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (from_id, rel_type, to_id)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations (from_id);
CREATE INDEX IF NOT EXISTS idx_relations_to   ON relations (to_id);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations (rel_type);
`

// Migrate creates or ensures all required tables, extensions, and indexes
// exist. It is idempotent and safe to call on every process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm;`,
		ddlGraph,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("graph postgres: migrate: %w", err)
		}
	}
	return nil
}
