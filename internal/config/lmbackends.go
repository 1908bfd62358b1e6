package config

import (
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/llm/anyllm"
	"github.com/worldgraph/ace/pkg/llm/openai"
)

// DefaultRegistry returns a [Registry] with ACE's two built-in LM backends
// already registered: "openai" talks to the OpenAI API (or any
// OpenAI-compatible endpoint via LMConfig.Host), and "anyllm" routes through
// any-llm-go's multi-vendor client, treating LMConfig.Host as the vendor
// name ("anthropic", "ollama", "gemini", ...).
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterLM("openai", newOpenAIBackend)
	reg.RegisterLM("anyllm", newAnyLLMBackend)
	return reg
}

func newOpenAIBackend(cfg LMConfig) (llm.Provider, error) {
	var opts []openai.Option
	if cfg.Host != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Host))
	}
	if cfg.EmbedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbedModel))
	}
	if cfg.RequestDeadline > 0 {
		opts = append(opts, openai.WithTimeout(cfg.RequestDeadline))
	}
	return openai.New(cfg.APIKey, cfg.Model, opts...)
}

func newAnyLLMBackend(cfg LMConfig) (llm.Provider, error) {
	vendor := cfg.Host
	if vendor == "" {
		vendor = "openai"
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	return anyllm.New(vendor, cfg.Model, opts...)
}
