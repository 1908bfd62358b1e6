// Package mock provides an in-memory [graph.Adapter] for tests that need a
// graph store without a live Postgres instance.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

func errUnknownEntity(id string) error {
	return fmt.Errorf("graph mock: relation endpoint %q does not exist", id)
}

var _ graph.Adapter = (*Store)(nil)

// Store is an in-memory [graph.Adapter], safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]graph.Entity
	relations map[string]graph.Relation // key: from|type|to
}

// New returns an empty mock store.
func New() *Store {
	return &Store{
		entities:  make(map[string]graph.Entity),
		relations: make(map[string]graph.Relation),
	}
}

func (s *Store) Close() {}

func relKey(from string, typ ontology.RelationType, to string) string {
	return from + "|" + string(typ) + "|" + to
}

func (s *Store) UpsertEntity(ctx context.Context, ent graph.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.entities[ent.CanonicalID]; ok {
		ent.CreatedAt = existing.CreatedAt
	} else {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now
	s.entities[ent.CanonicalID] = ent
	return nil
}

func (s *Store) UpsertRelation(ctx context.Context, rel graph.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[rel.From]; !ok {
		return errUnknownEntity(rel.From)
	}
	if _, ok := s.entities[rel.To]; !ok {
		return errUnknownEntity(rel.To)
	}
	now := time.Now().UTC()
	key := relKey(rel.From, rel.Type, rel.To)
	if existing, ok := s.relations[key]; ok {
		rel.CreatedAt = existing.CreatedAt
	} else {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = now
	s.relations[key] = rel
	return nil
}

func (s *Store) UpsertEntityGroup(ctx context.Context, entities []graph.Entity, relations []graph.Relation) error {
	s.mu.Lock()
	staged := make(map[string]graph.Entity, len(s.entities)+len(entities))
	for k, v := range s.entities {
		staged[k] = v
	}
	now := time.Now().UTC()
	for _, ent := range entities {
		if existing, ok := staged[ent.CanonicalID]; ok {
			ent.CreatedAt = existing.CreatedAt
		} else {
			ent.CreatedAt = now
		}
		ent.UpdatedAt = now
		staged[ent.CanonicalID] = ent
	}
	for _, rel := range relations {
		if _, ok := staged[rel.From]; !ok {
			s.mu.Unlock()
			return errUnknownEntity(rel.From)
		}
		if _, ok := staged[rel.To]; !ok {
			s.mu.Unlock()
			return errUnknownEntity(rel.To)
		}
	}
	s.entities = staged
	for _, rel := range relations {
		key := relKey(rel.From, rel.Type, rel.To)
		if existing, ok := s.relations[key]; ok {
			rel.CreatedAt = existing.CreatedAt
		} else {
			rel.CreatedAt = now
		}
		rel.UpdatedAt = now
		s.relations[key] = rel
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) GetEntity(ctx context.Context, canonicalID string) (*graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[canonicalID]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetEntityByName(ctx context.Context, typ ontology.EntityType, name string) (*graph.Entity, error) {
	return s.GetEntity(ctx, ontology.CanonicalID(typ, name))
}

func (s *Store) GetAllFactions(ctx context.Context) ([]graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Entity
	for _, e := range s.entities {
		if e.Type == ontology.Faction {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID < out[j].CanonicalID })
	return out, nil
}

func (s *Store) relatedByType(entityID string, relType ontology.RelationType, outgoing bool) []graph.Entity {
	var out []graph.Entity
	for _, r := range s.relations {
		if r.Type != relType {
			continue
		}
		var otherID string
		switch {
		case outgoing && r.From == entityID:
			otherID = r.To
		case !outgoing && r.To == entityID:
			otherID = r.From
		default:
			continue
		}
		if e, ok := s.entities[otherID]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID < out[j].CanonicalID })
	return out
}

func (s *Store) GetFactionContext(ctx context.Context, name string) (*graph.FactionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	faction, ok := s.entities[ontology.CanonicalID(ontology.Faction, name)]
	if !ok {
		return nil, nil
	}
	characters := append(s.relatedByType(faction.CanonicalID, ontology.Commands, true),
		s.relatedByType(faction.CanonicalID, ontology.MemberOf, false)...)
	return &graph.FactionContext{
		Faction:    faction,
		Resources:  s.relatedByType(faction.CanonicalID, ontology.ControlsResource, true),
		Characters: characters,
		Allies:     s.relatedByType(faction.CanonicalID, ontology.IsAllyOf, true),
		Events:     s.relatedByType(faction.CanonicalID, ontology.ParticipatedIn, true),
	}, nil
}

func (s *Store) FindIndirectResourceControl(ctx context.Context, resource string, maxHops int) ([]graph.ControlChain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resEntity, ok := s.entities[ontology.CanonicalID(ontology.Resource, resource)]
	if !ok {
		return []graph.ControlChain{}, nil
	}

	var chains []graph.ControlChain
	visited := map[string]int{}
	var queue []struct {
		id   string
		hops int
		path []string
	}
	for _, r := range s.relations {
		if r.Type == ontology.ControlsResource && r.To == resEntity.CanonicalID {
			queue = append(queue, struct {
				id   string
				hops int
				path []string
			}{r.From, 0, []string{r.From}})
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if prevHops, ok := visited[cur.id]; ok && prevHops <= cur.hops {
			continue
		}
		visited[cur.id] = cur.hops
		faction, ok := s.entities[cur.id]
		if !ok {
			continue
		}
		var path []graph.Entity
		for _, id := range cur.path {
			if e, ok := s.entities[id]; ok {
				path = append(path, e)
			}
		}
		chains = append(chains, graph.ControlChain{Faction: faction, Hops: cur.hops, Path: path})
		if cur.hops >= maxHops {
			continue
		}
		for _, r := range s.relations {
			if r.Type == ontology.IsAllyOf && r.From == cur.id {
				queue = append(queue, struct {
					id   string
					hops int
					path []string
				}{r.To, cur.hops + 1, append(append([]string{}, cur.path...), r.To)})
			}
		}
	}
	return chains, nil
}

func (s *Store) FindPotentialContradictions(ctx context.Context, factionA, factionB string) ([]graph.Contradiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, aok := s.entities[ontology.CanonicalID(ontology.Faction, factionA)]
	b, bok := s.entities[ontology.CanonicalID(ontology.Faction, factionB)]
	if !aok || !bok {
		return []graph.Contradiction{}, nil
	}
	var out []graph.Contradiction
	for k, va := range a.Properties {
		vb, ok := b.Properties[k]
		if !ok {
			continue
		}
		if stringify(va) != stringify(vb) {
			out = append(out, graph.Contradiction{EntityID: a.CanonicalID + "|" + b.CanonicalID, Property: k, ValueA: va, ValueB: vb})
		}
	}
	return out, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (s *Store) GetEventsByTimeRange(ctx context.Context, start, end time.Time) ([]graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []graph.Entity
	for _, e := range s.entities {
		if e.Type != ontology.Event {
			continue
		}
		raw, ok := e.Properties["date"].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		if (t.Equal(start) || t.After(start)) && (t.Equal(end) || t.Before(end)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) FindEntitiesByKeyword(ctx context.Context, keyword string, limit int) ([]graph.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(keyword)
	var out []graph.Entity
	for _, e := range s.entities {
		name, _ := e.Properties["name"].(string)
		if strings.Contains(strings.ToLower(name), lower) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID < out[j].CanonicalID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindRelationsForEntities(ctx context.Context, ids []string) ([]graph.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	var out []graph.Relation
	for _, r := range s.relations {
		_, fromIn := idSet[r.From]
		_, toIn := idSet[r.To]
		if fromIn || toIn {
			out = append(out, r)
		}
	}
	return out, nil
}
