package workflow

import (
	"context"
	"sync"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/prompt"
	"github.com/worldgraph/ace/pkg/vector"
)

// defaultNarratorVersion pins the prompt version the Narrator loads. Bumping
// the narrator prompt to a new semver requires updating this constant
// deliberately — the registry never falls back to another version.
const defaultNarratorVersion = "1.1.0"

// defaultMaxIterations and defaultFaithfulnessThreshold are used when New is
// called without the corresponding [Option]. defaultMaxIterations equals
// [config.WorkflowConfig]'s default of 3; defaultFaithfulnessThreshold (0.8)
// is lower than the config default of 0.97, which applies only when the
// caller passes it through [WithFaithfulnessThreshold].
const (
	defaultMaxIterations         = 3
	defaultFaithfulnessThreshold = 0.8
)

// Workflow runs the Historian -> Narrator -> Checker state machine for one
// query at a time. The adapters and prompt registry are immutable after
// construction; maxIterations and faithfulnessThreshold are guarded by mu so
// a config hot-reload (see [internal/config.Watcher]) can adjust them while
// queries are in flight.
type Workflow struct {
	graphStore      graph.Adapter
	vectorStore     vector.Adapter
	provider        llm.Provider
	prompts         *prompt.Registry
	narratorVersion string

	mu                    sync.RWMutex
	maxIterations         int
	faithfulnessThreshold float64
}

// Option configures optional [Workflow] construction parameters.
type Option func(*Workflow)

// WithMaxIterations overrides the number of Narrator/Checker rounds allowed
// before a query is forced to END_FAIL. The default is 3.
func WithMaxIterations(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// WithFaithfulnessThreshold overrides the Checker's minimum consistency
// score for a draft to reach END_OK. The default is 0.8.
func WithFaithfulnessThreshold(f float64) Option {
	return func(w *Workflow) {
		if f > 0 {
			w.faithfulnessThreshold = f
		}
	}
}

// New wires a Workflow against the graph/vector adapters, LM provider, and
// prompt registry shared with the rest of ACE.
func New(provider llm.Provider, prompts *prompt.Registry, graphStore graph.Adapter, vectorStore vector.Adapter, opts ...Option) *Workflow {
	w := &Workflow{
		graphStore:            graphStore,
		vectorStore:           vectorStore,
		provider:              provider,
		prompts:               prompts,
		narratorVersion:       defaultNarratorVersion,
		maxIterations:         defaultMaxIterations,
		faithfulnessThreshold: defaultFaithfulnessThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// MaxIterations returns the current Narrator/Checker iteration bound.
func (w *Workflow) MaxIterations() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maxIterations
}

// SetMaxIterations updates the iteration bound for subsequent Run calls.
// Queries already in flight keep the bound they started with.
func (w *Workflow) SetMaxIterations(n int) {
	if n <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxIterations = n
}

// FaithfulnessThreshold returns the Checker's current minimum consistency
// score.
func (w *Workflow) FaithfulnessThreshold() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.faithfulnessThreshold
}

// SetFaithfulnessThreshold updates the Checker's minimum consistency score.
// The Checker reads it on every pass, so queries already in flight use the
// new value from their next Checker pass on.
func (w *Workflow) SetFaithfulnessThreshold(f float64) {
	if f <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faithfulnessThreshold = f
}

// Run executes the full Historian -> Narrator -> Checker cycle, looping back
// to Narrator on an invalid draft up to [Workflow.MaxIterations] times. Any
// adapter error is treated as fatal and ends the run with END_FAIL
// immediately, since retries are already the adapter's own responsibility;
// the one exception is Narrator output that still fails to parse after the
// LM adapter's reask, which counts as an invalid draft.
// The iteration bound is read once at the start of the run, so a config
// hot-reload that changes it mid-flight only affects queries that start
// afterward.
func (w *Workflow) Run(ctx context.Context, query string) (Result, error) {
	maxIterations := w.MaxIterations()

	retrieved, err := w.historian(ctx, query)
	if err != nil {
		return Result{Success: false, FinalState: EndFail}, err
	}

	var (
		validation ValidationResult
		iterations int
		prior      *ValidationResult
	)

	for {
		iterations++
		generated, invalid, err := w.narrate(ctx, query, retrieved, prior)
		if err != nil {
			return Result{Success: false, FinalState: EndFail, Iterations: iterations, Context: retrieved}, err
		}
		if invalid != nil {
			if iterations >= maxIterations {
				return Result{
					Success:    false,
					FinalState: EndFail,
					Iterations: iterations,
					Context:    retrieved,
					Validation: *invalid,
				}, nil
			}
			prior = invalid
			continue
		}

		if err := ctx.Err(); err != nil {
			return Result{Success: false, FinalState: EndFail, Iterations: iterations, Context: retrieved}, err
		}

		validation, err = w.check(ctx, generated)
		if err != nil {
			return Result{Success: false, FinalState: EndFail, Iterations: iterations, Context: retrieved}, err
		}

		if validation.Valid {
			return Result{
				Success:    true,
				FinalState: EndOK,
				Iterations: iterations,
				Draft:      generated,
				Context:    retrieved,
				Validation: validation,
			}, nil
		}

		if iterations >= maxIterations {
			return Result{
				Success:    false,
				FinalState: EndFail,
				Iterations: iterations,
				Draft:      generated,
				Context:    retrieved,
				Validation: validation,
			}, nil
		}
		prior = &validation
	}
}
