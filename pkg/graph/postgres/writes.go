package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// upsert helpers below run standalone or inside [Store.UpsertEntityGroup]'s
// transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertEntity implements [graph.Adapter]. created_at is preserved across
// updates because the ON CONFLICT update never sets it; updated_at always
// refreshes.
func (s *Store) UpsertEntity(ctx context.Context, ent graph.Entity) error {
	return s.retry(ctx, "upsert entity", func() error {
		return upsertEntityTx(ctx, s.pool, ent)
	})
}

func upsertEntityTx(ctx context.Context, q queryer, ent graph.Entity) error {
	propsJSON, err := json.Marshal(ent.Properties)
	if err != nil {
		return fmt.Errorf("graph postgres: marshal properties: %w", err)
	}

	const stmt = `
		INSERT INTO entities (canonical_id, type, properties, merged_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (canonical_id) DO UPDATE SET
		    type        = EXCLUDED.type,
		    properties  = EXCLUDED.properties,
		    merged_from = EXCLUDED.merged_from,
		    updated_at  = now()`

	_, err = q.Exec(ctx, stmt, ent.CanonicalID, string(ent.Type), propsJSON, ent.MergedFrom)
	if err != nil {
		return fmt.Errorf("graph postgres: upsert entity %q: %w", ent.CanonicalID, err)
	}
	return nil
}

// UpsertRelation implements [graph.Adapter].
func (s *Store) UpsertRelation(ctx context.Context, rel graph.Relation) error {
	return s.retry(ctx, "upsert relation", func() error {
		return upsertRelationTx(ctx, s.pool, rel)
	})
}

func upsertRelationTx(ctx context.Context, q queryer, rel graph.Relation) error {
	propsJSON, err := json.Marshal(rel.Properties)
	if err != nil {
		return fmt.Errorf("graph postgres: marshal relation properties: %w", err)
	}

	const stmt = `
		INSERT INTO relations (from_id, rel_type, to_id, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (from_id, rel_type, to_id) DO UPDATE SET
		    properties = EXCLUDED.properties,
		    updated_at = now()`

	_, err = q.Exec(ctx, stmt, rel.From, string(rel.Type), rel.To, propsJSON)
	if err != nil {
		return fmt.Errorf("graph postgres: upsert relation (%s,%s,%s): %w", rel.From, rel.Type, rel.To, err)
	}
	return nil
}

// UpsertEntityGroup implements [graph.Adapter]: entities first, then
// relations, in a single transaction that rolls back entirely on any error.
func (s *Store) UpsertEntityGroup(ctx context.Context, entities []graph.Entity, relations []graph.Relation) error {
	return s.retry(ctx, "upsert entity group", func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("graph postgres: begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		for _, ent := range entities {
			if err := upsertEntityTx(ctx, tx, ent); err != nil {
				return err
			}
		}
		for _, rel := range relations {
			if err := upsertRelationTx(ctx, tx, rel); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("graph postgres: commit tx: %w", err)
		}
		return nil
	})
}

// GetEntity implements [graph.Adapter].
func (s *Store) GetEntity(ctx context.Context, canonicalID string) (*graph.Entity, error) {
	const q = `
		SELECT canonical_id, type, properties, merged_from, created_at, updated_at
		FROM   entities
		WHERE  canonical_id = $1`

	var result *graph.Entity
	err := s.retry(ctx, "get entity", func() error {
		rows, err := s.pool.Query(ctx, q, canonicalID)
		if err != nil {
			return err
		}
		ents, err := collectEntities(rows)
		if err != nil {
			return err
		}
		if len(ents) > 0 {
			result = &ents[0]
		}
		return nil
	})
	return result, err
}

// GetEntityByName implements [graph.Adapter] using the same canonicalization
// rule ingestion uses, so callers never compute a canonical id by hand.
func (s *Store) GetEntityByName(ctx context.Context, typ ontology.EntityType, name string) (*graph.Entity, error) {
	return s.GetEntity(ctx, ontology.CanonicalID(typ, name))
}
