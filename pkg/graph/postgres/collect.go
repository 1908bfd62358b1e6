package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

func collectEntities(rows pgx.Rows) ([]graph.Entity, error) {
	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Entity, error) {
		var (
			e          graph.Entity
			typ        string
			propsJSON  []byte
			mergedFrom []string
		)
		if err := row.Scan(&e.CanonicalID, &typ, &propsJSON, &mergedFrom, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return graph.Entity{}, err
		}
		e.Type = ontology.EntityType(typ)
		e.MergedFrom = mergedFrom
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &e.Properties); err != nil {
				return graph.Entity{}, fmt.Errorf("unmarshal entity properties: %w", err)
			}
		}
		if e.Properties == nil {
			e.Properties = map[string]any{}
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = []graph.Entity{}
	}
	return entities, nil
}

func collectRelations(rows pgx.Rows) ([]graph.Relation, error) {
	rels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Relation, error) {
		var (
			r         graph.Relation
			typ       string
			propsJSON []byte
		)
		if err := row.Scan(&r.From, &typ, &r.To, &propsJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return graph.Relation{}, err
		}
		r.Type = ontology.RelationType(typ)
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &r.Properties); err != nil {
				return graph.Relation{}, fmt.Errorf("unmarshal relation properties: %w", err)
			}
		}
		if r.Properties == nil {
			r.Properties = map[string]any{}
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if rels == nil {
		rels = []graph.Relation{}
	}
	return rels, nil
}
