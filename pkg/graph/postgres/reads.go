package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

// GetAllFactions implements [graph.Adapter].
func (s *Store) GetAllFactions(ctx context.Context) ([]graph.Entity, error) {
	const q = `
		SELECT canonical_id, type, properties, merged_from, created_at, updated_at
		FROM   entities
		WHERE  type = $1
		ORDER  BY properties->>'name'`

	var result []graph.Entity
	err := s.retry(ctx, "get all factions", func() error {
		rows, err := s.pool.Query(ctx, q, string(ontology.Faction))
		if err != nil {
			return err
		}
		result, err = collectEntities(rows)
		return err
	})
	return result, err
}

// relatedByType returns entities reached by following relType edges of the
// given direction away from entityID.
func (s *Store) relatedByType(ctx context.Context, entityID string, relType ontology.RelationType, outgoing bool) ([]graph.Entity, error) {
	var q string
	if outgoing {
		q = `
			SELECT e.canonical_id, e.type, e.properties, e.merged_from, e.created_at, e.updated_at
			FROM   relations r
			JOIN   entities  e ON e.canonical_id = r.to_id
			WHERE  r.from_id = $1 AND r.rel_type = $2
			ORDER  BY e.properties->>'name'`
	} else {
		q = `
			SELECT e.canonical_id, e.type, e.properties, e.merged_from, e.created_at, e.updated_at
			FROM   relations r
			JOIN   entities  e ON e.canonical_id = r.from_id
			WHERE  r.to_id = $1 AND r.rel_type = $2
			ORDER  BY e.properties->>'name'`
	}

	var result []graph.Entity
	err := s.retry(ctx, "get related entities", func() error {
		rows, err := s.pool.Query(ctx, q, entityID, string(relType))
		if err != nil {
			return err
		}
		result, err = collectEntities(rows)
		return err
	})
	return result, err
}

// GetFactionContext implements [graph.Adapter].
func (s *Store) GetFactionContext(ctx context.Context, name string) (*graph.FactionContext, error) {
	faction, err := s.GetEntityByName(ctx, ontology.Faction, name)
	if err != nil {
		return nil, err
	}
	if faction == nil {
		return nil, nil
	}

	resources, err := s.relatedByType(ctx, faction.CanonicalID, ontology.ControlsResource, true)
	if err != nil {
		return nil, err
	}
	commanded, err := s.relatedByType(ctx, faction.CanonicalID, ontology.Commands, true)
	if err != nil {
		return nil, err
	}
	members, err := s.relatedByType(ctx, faction.CanonicalID, ontology.MemberOf, false)
	if err != nil {
		return nil, err
	}
	allies, err := s.relatedByType(ctx, faction.CanonicalID, ontology.IsAllyOf, true)
	if err != nil {
		return nil, err
	}
	events, err := s.relatedByType(ctx, faction.CanonicalID, ontology.ParticipatedIn, true)
	if err != nil {
		return nil, err
	}

	return &graph.FactionContext{
		Faction:    *faction,
		Resources:  resources,
		Characters: dedupeEntities(commanded, members),
		Allies:     allies,
		Events:     events,
	}, nil
}

func dedupeEntities(groups ...[]graph.Entity) []graph.Entity {
	seen := make(map[string]struct{})
	result := []graph.Entity{}
	for _, group := range groups {
		for _, e := range group {
			if _, ok := seen[e.CanonicalID]; ok {
				continue
			}
			seen[e.CanonicalID] = struct{}{}
			result = append(result, e)
		}
	}
	return result
}

type controlChainRow struct {
	factionID string
	path      []string
	hops      int
}

// FindIndirectResourceControl implements [graph.Adapter]. maxHops bounds an
// IS_ALLY_OF traversal that starts from whichever faction directly controls
// resource via a CONTROLS_RESOURCE edge.
func (s *Store) FindIndirectResourceControl(ctx context.Context, resource string, maxHops int) ([]graph.ControlChain, error) {
	if maxHops < 1 || maxHops > 3 {
		return nil, fmt.Errorf("graph postgres: find indirect resource control: maxHops must be 1, 2, or 3, got %d", maxHops)
	}

	resourceEntity, err := s.GetEntityByName(ctx, ontology.Resource, resource)
	if err != nil {
		return nil, err
	}
	if resourceEntity == nil {
		return []graph.ControlChain{}, nil
	}

	const q = `
		WITH RECURSIVE direct AS (
		    SELECT from_id AS faction_id
		    FROM   relations
		    WHERE  rel_type = 'CONTROLS_RESOURCE' AND to_id = $1
		),
		chain AS (
		    SELECT faction_id, ARRAY[faction_id] AS path, 0 AS hops
		    FROM   direct

		    UNION ALL

		    SELECT r.to_id, c.path || r.to_id, c.hops + 1
		    FROM   chain c
		    JOIN   relations r ON r.from_id = c.faction_id AND r.rel_type = 'IS_ALLY_OF'
		    WHERE  c.hops < $2
		      AND  NOT (r.to_id = ANY(c.path))
		)
		SELECT faction_id, path, hops
		FROM   chain
		ORDER  BY hops`

	var rowsOut []controlChainRow
	err = s.retry(ctx, "find indirect resource control", func() error {
		rows, err := s.pool.Query(ctx, q, resourceEntity.CanonicalID, maxHops)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row controlChainRow
			if err := rows.Scan(&row.factionID, &row.path, &row.hops); err != nil {
				return err
			}
			rowsOut = append(rowsOut, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	chains := make([]graph.ControlChain, 0, len(rowsOut))
	for _, row := range rowsOut {
		faction, err := s.GetEntity(ctx, row.factionID)
		if err != nil {
			return nil, err
		}
		if faction == nil {
			continue
		}
		path, err := s.entitiesByIDOrdered(ctx, row.path)
		if err != nil {
			return nil, err
		}
		chains = append(chains, graph.ControlChain{Faction: *faction, Hops: row.hops, Path: path})
	}
	return chains, nil
}

func (s *Store) entitiesByIDOrdered(ctx context.Context, ids []string) ([]graph.Entity, error) {
	if len(ids) == 0 {
		return []graph.Entity{}, nil
	}
	const q = `
		SELECT canonical_id, type, properties, merged_from, created_at, updated_at
		FROM   entities
		WHERE  canonical_id = ANY($1::text[])`

	var byID map[string]graph.Entity
	err := s.retry(ctx, "fetch entities by id", func() error {
		rows, err := s.pool.Query(ctx, q, ids)
		if err != nil {
			return err
		}
		entities, err := collectEntities(rows)
		if err != nil {
			return err
		}
		byID = make(map[string]graph.Entity, len(entities))
		for _, e := range entities {
			byID[e.CanonicalID] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ordered := make([]graph.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

// FindPotentialContradictions implements [graph.Adapter]: every property key
// present on both factions whose values disagree is one Contradiction.
func (s *Store) FindPotentialContradictions(ctx context.Context, factionA, factionB string) ([]graph.Contradiction, error) {
	a, err := s.GetEntityByName(ctx, ontology.Faction, factionA)
	if err != nil {
		return nil, err
	}
	b, err := s.GetEntityByName(ctx, ontology.Faction, factionB)
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return []graph.Contradiction{}, nil
	}

	contradictions := []graph.Contradiction{}
	for key, valA := range a.Properties {
		valB, ok := b.Properties[key]
		if !ok {
			continue
		}
		if !valuesEqual(valA, valB) {
			contradictions = append(contradictions, graph.Contradiction{
				EntityID: a.CanonicalID + "|" + b.CanonicalID,
				Property: key,
				ValueA:   valA,
				ValueB:   valB,
			})
		}
	}
	return contradictions, nil
}

func valuesEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// dateLayouts are tried in order when parsing an Event's "date" property.
var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01"}

// GetEventsByTimeRange implements [graph.Adapter]. Events are filtered in Go
// after fetch since "date" is free-text JSONB and may use any of several
// narrative date formats.
func (s *Store) GetEventsByTimeRange(ctx context.Context, start, end time.Time) ([]graph.Entity, error) {
	const q = `
		SELECT canonical_id, type, properties, merged_from, created_at, updated_at
		FROM   entities
		WHERE  type = $1`

	var all []graph.Entity
	err := s.retry(ctx, "get events by time range", func() error {
		rows, err := s.pool.Query(ctx, q, string(ontology.Event))
		if err != nil {
			return err
		}
		all, err = collectEntities(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := []graph.Entity{}
	for _, e := range all {
		raw, ok := e.Properties["date"].(string)
		if !ok {
			continue
		}
		t, ok := parseEventDate(raw)
		if !ok {
			continue
		}
		if (t.Equal(start) || t.After(start)) && (t.Equal(end) || t.Before(end)) {
			result = append(result, e)
		}
	}
	return result, nil
}

func parseEventDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FindEntitiesByKeyword implements [graph.Adapter] using the pg_trgm
// similarity index on properties->>'name'.
func (s *Store) FindEntitiesByKeyword(ctx context.Context, keyword string, limit int) ([]graph.Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
		SELECT canonical_id, type, properties, merged_from, created_at, updated_at
		FROM   entities
		WHERE  properties->>'name' ILIKE '%' || $1 || '%'
		   OR  similarity(properties->>'name', $1) > 0.2
		ORDER  BY similarity(properties->>'name', $1) DESC
		LIMIT  $2`

	var result []graph.Entity
	err := s.retry(ctx, "find entities by keyword", func() error {
		rows, err := s.pool.Query(ctx, q, keyword, limit)
		if err != nil {
			return err
		}
		result, err = collectEntities(rows)
		return err
	})
	return result, err
}

// FindRelationsForEntities implements [graph.Adapter].
func (s *Store) FindRelationsForEntities(ctx context.Context, ids []string) ([]graph.Relation, error) {
	if len(ids) == 0 {
		return []graph.Relation{}, nil
	}

	const q = `
		SELECT from_id, rel_type, to_id, properties, created_at, updated_at
		FROM   relations
		WHERE  from_id = ANY($1::text[]) OR to_id = ANY($1::text[])
		ORDER  BY created_at`

	var result []graph.Relation
	err := s.retry(ctx, "find relations for entities", func() error {
		rows, err := s.pool.Query(ctx, q, ids)
		if err != nil {
			return err
		}
		result, err = collectRelations(rows)
		return err
	})
	return result, err
}
