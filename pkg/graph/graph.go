// Package graph defines the Adapter interface for ACE's property-graph
// backend: idempotent upserts per entity/relation type and the shared read
// templates used by both the ingestion pipeline and the inference workflow.
//
// Adapter is the only component allowed to emit native graph queries; every
// other package calls its typed methods.
package graph

import (
	"context"
	"time"

	"github.com/worldgraph/ace/pkg/ontology"
)

// Entity is a typed node as persisted by the graph adapter.
type Entity struct {
	CanonicalID string
	Type        ontology.EntityType
	Properties  map[string]any
	MergedFrom  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Relation is a directed typed edge as persisted by the graph adapter.
type Relation struct {
	From       string
	Type       ontology.RelationType
	To         string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FactionContext is the result of get_faction_context: a faction and
// everything the Historian/Narrator need to talk about it in one retrieval.
type FactionContext struct {
	Faction    Entity
	Resources  []Entity
	Characters []Entity
	Allies     []Entity
	Events     []Entity
}

// ControlChain is one hop in an indirect-resource-control result: the
// controlling faction and the ally chain (if any) connecting it to the
// resource's direct controller.
type ControlChain struct {
	Faction Entity
	Hops    int
	Path    []Entity
}

// Contradiction is a single property disagreement surfaced by
// find_potential_contradictions or the Consistency Checker.
type Contradiction struct {
	EntityID string
	Property string
	ValueA   any
	ValueB   any
}

// Adapter is the graph store abstraction. Implementations must be safe for
// concurrent use.
type Adapter interface {
	// UpsertEntity writes ent keyed on CanonicalID. CreatedAt is preserved on
	// update; UpdatedAt always refreshes. Transient connection errors are
	// retried internally (bounded, exponential backoff); constraint
	// violations surface as a types.Error with KindSchemaError.
	UpsertEntity(ctx context.Context, ent Entity) error

	// UpsertRelation writes rel keyed on (From, Type, To). Both endpoints
	// must already exist; violating that surfaces KindSchemaError.
	UpsertRelation(ctx context.Context, rel Relation) error

	// UpsertEntityGroup writes entities and then relations in a single
	// transaction, rolling back entirely on any error. Used by the Write
	// stage of ingestion for one canonicalized group.
	UpsertEntityGroup(ctx context.Context, entities []Entity, relations []Relation) error

	// GetEntity returns the entity with the given canonical id, or nil if it
	// does not exist.
	GetEntity(ctx context.Context, canonicalID string) (*Entity, error)

	// GetEntityByName looks up an entity by (type, name) using the same
	// canonicalization rule as ingestion, so callers never need to compute
	// a canonical id themselves.
	GetEntityByName(ctx context.Context, typ ontology.EntityType, name string) (*Entity, error)

	// GetAllFactions returns every Faction entity, ordered by name.
	GetAllFactions(ctx context.Context) ([]Entity, error)

	// GetFactionContext returns the named faction together with its
	// controlled resources, member/commanding characters, allies, and
	// participated events.
	GetFactionContext(ctx context.Context, name string) (*FactionContext, error)

	// FindIndirectResourceControl returns factions that can reach control of
	// resource through up to maxHops IS_ALLY_OF hops from a direct
	// controller. maxHops must be 1, 2, or 3.
	FindIndirectResourceControl(ctx context.Context, resource string, maxHops int) ([]ControlChain, error)

	// FindPotentialContradictions compares every shared property between
	// factionA and factionB (matched by name) and returns the ones that
	// disagree.
	FindPotentialContradictions(ctx context.Context, factionA, factionB string) ([]Contradiction, error)

	// GetEventsByTimeRange returns Event entities whose "date" property
	// falls within the inclusive window. Events with unparsable dates are
	// excluded rather than erroring the whole call.
	GetEventsByTimeRange(ctx context.Context, start, end time.Time) ([]Entity, error)

	// FindEntitiesByKeyword does a case-insensitive substring/full-text match
	// against entity names and returns at most limit hits, most relevant
	// first.
	FindEntitiesByKeyword(ctx context.Context, keyword string, limit int) ([]Entity, error)

	// FindRelationsForEntities returns every relation whose From or To is in
	// ids.
	FindRelationsForEntities(ctx context.Context, ids []string) ([]Relation, error)

	// Close releases underlying resources (connection pool).
	Close()
}
