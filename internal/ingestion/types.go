// Package ingestion implements ACE's Extract-Define-Canonicalize-Write (EDC)
// pipeline: turning raw narrative text into upserts against the graph and
// vector adapters.
package ingestion

import (
	"time"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

// ExtractedEntity is one entity mention as produced by the Extract stage,
// before canonicalization.
type ExtractedEntity struct {
	Type       ontology.EntityType `json:"type"`
	Mention    string              `json:"mention"`
	Attributes map[string]any      `json:"attributes"`
	Confidence float64             `json:"confidence"`
}

// ExtractedRelation is one relation mention as produced by the Extract
// stage, before its endpoints are resolved to canonical ids.
type ExtractedRelation struct {
	FromMention string  `json:"from_mention"`
	ToMention   string  `json:"to_mention"`
	RawType     string  `json:"raw_type"`
	Evidence    string  `json:"evidence"`
	Confidence  float64 `json:"confidence"`
}

// extractionResult is the structured shape the Extract stage's LM call
// produces.
type extractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// DefinedEntity is an [ExtractedEntity] after Define: mapped to its closed
// entity type, given a transient id, and attribute-validated.
type DefinedEntity struct {
	TransientID string
	Type        ontology.EntityType
	Mention     string
	Attributes  map[string]any
	Confidence  float64
	Valid       bool
	Violations  []string
}

// DefinedRelation is an [ExtractedRelation] after Define: its raw label
// normalized to a closed [ontology.RelationType].
type DefinedRelation struct {
	FromMention string
	ToMention   string
	Type        ontology.RelationType
	Confidence  float64
}

// CanonicalGroup is one canonical entity assembled from one or more
// [DefinedEntity] values that share a canonical id.
type CanonicalGroup struct {
	CanonicalID string
	Type        ontology.EntityType
	Attributes  map[string]any
	MergedFrom  []string // transient ids folded into this group
	Names       []string // every mention seen for this group, for relation resolution
}

// StageTiming records how long one EDC stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result is the outcome of running the full pipeline on one submission.
type Result struct {
	Status               string // "completed", "partial", "failed"
	EntitiesCreated       int
	RelationshipsCreated  int
	Warnings              []string
	Errors                []string
	Timings               []StageTiming
	Entities              []graph.Entity
	Relations             []graph.Relation
}

func totalDuration(timings []StageTiming) time.Duration {
	var total time.Duration
	for _, t := range timings {
		total += t.Duration
	}
	return total
}
