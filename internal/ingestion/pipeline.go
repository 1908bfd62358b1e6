package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/prompt"
	"github.com/worldgraph/ace/pkg/vector"
)

// Pipeline runs the Extract-Define-Canonicalize-Write stages against one
// submission. A Pipeline is safe for concurrent use; the only mutable state
// is the monotonic counter backing transient entity ids.
type Pipeline struct {
	provider    llm.Provider
	prompts     *prompt.Registry
	graphStore  graph.Adapter
	vectorStore vector.Adapter

	monotonic atomic.Uint64
}

// NewPipeline wires an EDC pipeline against the given LM provider, prompt
// registry, and graph/vector adapters. vectorStore may be nil, in which case
// the Write stage skips embedding and only writes to the graph.
func NewPipeline(provider llm.Provider, prompts *prompt.Registry, graphStore graph.Adapter, vectorStore vector.Adapter) *Pipeline {
	return &Pipeline{
		provider:    provider,
		prompts:     prompts,
		graphStore:  graphStore,
		vectorStore: vectorStore,
	}
}

func (p *Pipeline) nextMonotonic() uint64 {
	return p.monotonic.Add(1)
}

// Run executes Extract, Define, Canonicalize, then Write in sequence. It
// short-circuits to a "failed" result if Extract errors outright or yields
// zero entities. After Write, the result is "failed" when errors were
// recorded and no entity was created; any other error or warning degrades
// it to "partial" rather than aborting, so partial work is never silently
// discarded.
func (p *Pipeline) Run(ctx context.Context, sourceID, text string, metadata map[string]any) (Result, error) {
	var timings []StageTiming

	extraction, extractTiming, err := p.extract(ctx, text)
	timings = append(timings, extractTiming)
	if err != nil {
		return Result{
			Status:   "failed",
			Errors:   []string{err.Error()},
			Timings:  timings,
		}, nil
	}
	if len(extraction.Entities) == 0 {
		return Result{
			Status:   "failed",
			Errors:   []string{"extract: no entities found in source text"},
			Timings:  timings,
		}, nil
	}

	definedEntities, definedRelations, defineTiming := p.define(extraction)
	timings = append(timings, defineTiming)

	canon, canonTiming := p.canonicalize(definedEntities, definedRelations)
	timings = append(timings, canonTiming)

	result, writeTiming := p.write(ctx, sourceID, text, canon, metadata)
	timings = append(timings, writeTiming)
	result.Timings = timings

	switch {
	case len(result.Errors) > 0 && result.EntitiesCreated == 0:
		result.Status = "failed"
	case len(result.Errors) > 0 || len(result.Warnings) > 0:
		// Writes succeeded but something was dropped or degraded along the
		// way: an unresolved relation endpoint, an invalid entity, a failed
		// embed. §4.6 calls this "partial", distinct from a clean "completed".
		result.Status = "partial"
	default:
		result.Status = "completed"
	}
	return result, nil
}

func stageError(stage string, err error) string {
	return fmt.Sprintf("%s: %v", stage, err)
}
