// Package workflow implements ACE's Inference Workflow: a bounded
// Historian -> Narrator -> Consistency Checker state machine that turns a
// user query into a grounded, validated narrative draft.
package workflow

import (
	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
	"github.com/worldgraph/ace/pkg/vector"
)

// State is one node of the inference FSM.
type State string

const (
	Historian State = "HISTORIAN"
	Narrator  State = "NARRATOR"
	Checker   State = "CHECKER"
	EndOK     State = "END_OK"
	EndFail   State = "END_FAIL"
)

// RetrievedContext is the Historian's output: everything pulled from the
// graph and vector stores for one query.
type RetrievedContext struct {
	Entities       []graph.Entity
	Relations      []graph.Relation
	VectorHits     []vector.Hit
	RelevanceScore float64
}

// ValidationResult is the Checker's output for one Narrator draft.
type ValidationResult struct {
	Valid          bool
	SchemaErrors   []string
	Contradictions []graph.Contradiction
	Score          float64
	Suggestions    []string
}

// Result is the terminal outcome of one workflow run.
type Result struct {
	Success    bool
	FinalState State
	Iterations int
	Draft      *ontology.GeneratedDraft
	Context    RetrievedContext
	Validation ValidationResult
}
