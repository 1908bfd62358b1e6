// Package postgres provides a pgvector-backed implementation of
// [vector.Adapter]. Chunks from every collection share one table,
// discriminated by a "collection" column, since ACE's lore and entity-
// description embeddings are small enough to live in one physical index.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlChunks returns the chunks table DDL with the embedding dimension baked
// into the vector column type, matching the configured embedding model.
func ddlChunks(dim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT         NOT NULL,
    collection  TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_chunks_embedding
    ON chunks USING hnsw (embedding vector_cosine_ops);
`, dim)
}

// Migrate creates or ensures the chunks table and pgvector extension exist.
// It is idempotent and safe to call on every process start. dim must match
// the configured embedding model's output dimension; changing it after the
// first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	if _, err := pool.Exec(ctx, ddlChunks(dim)); err != nil {
		return fmt.Errorf("vector postgres: migrate: %w", err)
	}
	return nil
}
