package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/worldgraph/ace/internal/resilience"
	"github.com/worldgraph/ace/pkg/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLM] when no factory
// has been registered under the requested backend name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LMFactory constructs an [llm.Provider] from an [LMConfig].
type LMFactory func(LMConfig) (llm.Provider, error)

// Registry maps LM backend names to their constructor functions. It is safe
// for concurrent use. Unlike the teacher's per-pipeline-stage registry (LLM,
// STT, TTS, S2S, embeddings, VAD, audio), ACE only has one swappable
// component family — LM backends, optionally chained primary/fallback via
// [LMConfig.Fallback] — since its graph and vector adapters are concretely
// constructed from [GraphConfig]/[VectorConfig] rather than selected by name.
type Registry struct {
	mu sync.RWMutex
	lm map[string]LMFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{lm: make(map[string]LMFactory)}
}

// RegisterLM registers an LM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLM(name string, factory LMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lm[name] = factory
}

// CreateLM instantiates an LM provider using the factory registered under
// cfg.Backend. An empty Backend defaults to "openai".
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
//
// When cfg.Fallback is set, the primary provider is wrapped in an
// [llm.FallbackProvider] that fails over to a second provider built from
// cfg.Fallback whenever a call to the primary fails, and skips the primary
// while its circuit breaker is open.
func (r *Registry) CreateLM(cfg LMConfig) (llm.Provider, error) {
	primaryName := cfg.Backend
	if primaryName == "" {
		primaryName = "openai"
	}
	primary, err := r.create(primaryName, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == nil {
		return primary, nil
	}

	fallbackName := cfg.Fallback.Backend
	if fallbackName == "" {
		fallbackName = "openai"
	}
	fallback, err := r.create(fallbackName, *cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("lm fallback: %w", err)
	}

	fp := llm.NewFallbackProvider(primary, primaryName, resilience.FallbackConfig{})
	fp.AddFallback(fallbackName, fallback)
	return fp, nil
}

func (r *Registry) create(name string, cfg LMConfig) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.lm[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: lm/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}
