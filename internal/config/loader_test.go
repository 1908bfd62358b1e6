package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/worldgraph/ace/internal/config"
	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/types"
)

const minimalValidYAML = `
graph:
  uri: postgres://localhost/ace
vector:
  url: postgres://localhost/ace
lm:
  model: gpt-4o
`

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestApplyEnv_OverridesEveryEnumeratedVariable(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalValidYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := fakeEnv(map[string]string{
		"GRAPH_URI":                "postgres://env-host/ace",
		"GRAPH_USER":               "env-user",
		"GRAPH_PASSWORD":           "env-pass",
		"VECTOR_URL":               "postgres://env-host/vectors",
		"LM_HOST":                  "https://env-lm.example.com",
		"LM_MODEL":                 "gpt-4o-mini",
		"LM_EMBED_MODEL":           "text-embedding-3-large",
		"INGESTION_WORKERS":        "16",
		"JOB_STATUS_RETENTION":     "15m",
		"QUERY_DEADLINE":           "45s",
		"LM_REQUEST_DEADLINE":      "10s",
		"FAITHFULNESS_THRESHOLD":   "0.99",
		"COVERAGE_THRESHOLD":       "0.9",
		"MAX_INFERENCE_ITERATIONS": "7",
	})

	if err := config.ApplyEnv(cfg, env); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Graph.URI != "postgres://env-host/ace" {
		t.Errorf("graph.uri: got %q", cfg.Graph.URI)
	}
	if cfg.Graph.User != "env-user" || cfg.Graph.Password != "env-pass" {
		t.Errorf("graph user/password: got %q/%q", cfg.Graph.User, cfg.Graph.Password)
	}
	if cfg.Vector.URL != "postgres://env-host/vectors" {
		t.Errorf("vector.url: got %q", cfg.Vector.URL)
	}
	if cfg.LM.Host != "https://env-lm.example.com" {
		t.Errorf("lm.host: got %q", cfg.LM.Host)
	}
	if cfg.LM.Model != "gpt-4o-mini" {
		t.Errorf("lm.model: got %q", cfg.LM.Model)
	}
	if cfg.LM.EmbedModel != "text-embedding-3-large" {
		t.Errorf("lm.embed_model: got %q", cfg.LM.EmbedModel)
	}
	if cfg.Ingestion.Workers != 16 {
		t.Errorf("ingestion.workers: got %d", cfg.Ingestion.Workers)
	}
	if cfg.Jobs.StatusRetention != 15*time.Minute {
		t.Errorf("jobs.status_retention: got %s", cfg.Jobs.StatusRetention)
	}
	if cfg.Workflow.QueryDeadline != 45*time.Second {
		t.Errorf("workflow.query_deadline: got %s", cfg.Workflow.QueryDeadline)
	}
	if cfg.LM.RequestDeadline != 10*time.Second {
		t.Errorf("lm.request_deadline: got %s", cfg.LM.RequestDeadline)
	}
	if cfg.Workflow.FaithfulnessThreshold != 0.99 {
		t.Errorf("workflow.faithfulness_threshold: got %.2f", cfg.Workflow.FaithfulnessThreshold)
	}
	if cfg.Workflow.CoverageThreshold != 0.9 {
		t.Errorf("workflow.coverage_threshold: got %.2f", cfg.Workflow.CoverageThreshold)
	}
	if cfg.Workflow.MaxInferenceIterations != 7 {
		t.Errorf("workflow.max_inference_iterations: got %d", cfg.Workflow.MaxInferenceIterations)
	}
}

func TestApplyEnv_LeavesUnsetVariablesAlone(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalValidYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := cfg.LM.Model

	if err := config.ApplyEnv(cfg, fakeEnv(nil)); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.LM.Model != want {
		t.Errorf("lm.model changed with no env set: got %q, want %q", cfg.LM.Model, want)
	}
}

func TestApplyEnv_RejectsMalformedNumericValue(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalValidYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = config.ApplyEnv(cfg, fakeEnv(map[string]string{"INGESTION_WORKERS": "not-a-number"}))
	if err == nil {
		t.Fatal("expected error for malformed INGESTION_WORKERS, got nil")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateLM(config.LMConfig{Backend: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_DefaultsToOpenAIBackend(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	var gotBackend string
	reg.RegisterLM("openai", func(cfg config.LMConfig) (llm.Provider, error) {
		gotBackend = "openai"
		return &stubLM{}, nil
	})

	_, err := reg.CreateLM(config.LMConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBackend != "openai" {
		t.Error("expected empty Backend to default to openai")
	}
}

func TestRegistry_RegisteredLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &stubLM{}
	reg.RegisterLM("stub", func(cfg config.LMConfig) (llm.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateLM(config.LMConfig{Backend: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLM("broken", func(cfg config.LMConfig) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLM(config.LMConfig{Backend: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestDefaultRegistry_RegistersBothBackends(t *testing.T) {
	t.Parallel()
	reg := config.DefaultRegistry()

	// Neither backend's constructor is expected to succeed with these bare
	// configs; the assertion only cares that a factory was found at all.
	if _, err := reg.CreateLM(config.LMConfig{Backend: "openai", APIKey: "sk-test", Model: "gpt-4o"}); errors.Is(err, config.ErrProviderNotRegistered) {
		t.Error("openai backend not registered")
	}
	if _, err := reg.CreateLM(config.LMConfig{Backend: "anyllm", Model: "gpt-4o"}); errors.Is(err, config.ErrProviderNotRegistered) {
		t.Error("anyllm backend not registered")
	}
}

func TestRegistry_CreateLM_WithFallback(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	primary := &stubLM{}
	secondary := &stubLM{}
	var gotPrimaryCfg, gotFallbackCfg config.LMConfig
	reg.RegisterLM("stub", func(cfg config.LMConfig) (llm.Provider, error) {
		gotPrimaryCfg = cfg
		return primary, nil
	})
	reg.RegisterLM("stub2", func(cfg config.LMConfig) (llm.Provider, error) {
		gotFallbackCfg = cfg
		return secondary, nil
	})

	got, err := reg.CreateLM(config.LMConfig{
		Backend: "stub",
		Model:   "primary-model",
		Fallback: &config.LMConfig{
			Backend: "stub2",
			Model:   "fallback-model",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == llm.Provider(primary) || got == llm.Provider(secondary) {
		t.Fatal("expected CreateLM to return a FallbackProvider wrapping both backends, not a bare instance")
	}
	if _, ok := got.(*llm.FallbackProvider); !ok {
		t.Fatalf("expected *llm.FallbackProvider, got %T", got)
	}
	if gotPrimaryCfg.Model != "primary-model" {
		t.Errorf("expected primary factory to see primary-model, got %q", gotPrimaryCfg.Model)
	}
	if gotFallbackCfg.Model != "fallback-model" {
		t.Errorf("expected fallback factory to see fallback-model, got %q", gotFallbackCfg.Model)
	}

	// A functional smoke check: the wrapped provider still satisfies
	// llm.Provider end to end, routing Embed through the fallback group.
	if _, err := got.Embed(context.Background(), []string{"text"}); err != nil {
		t.Errorf("unexpected error from fallback-wrapped Embed: %v", err)
	}
}

func TestRegistry_CreateLM_NoFallbackReturnsBareProvider(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &stubLM{}
	reg.RegisterLM("stub", func(cfg config.LMConfig) (llm.Provider, error) {
		return want, nil
	})

	got, err := reg.CreateLM(config.LMConfig{Backend: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("expected CreateLM with no Fallback set to return the primary instance unwrapped")
	}
}

// stubLM implements llm.Provider with no-op methods, for registry tests that
// only care about instance identity.
type stubLM struct{}

func (s *stubLM) StreamCompletion(_ context.Context, _ llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

func (s *stubLM) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}

func (s *stubLM) Embed(_ context.Context, texts []string) (*llm.EmbeddingResponse, error) {
	return &llm.EmbeddingResponse{Vectors: make([][]float32, len(texts))}, nil
}

func (s *stubLM) CountTokens(_ []types.Message) (int, error) { return 0, nil }

func (s *stubLM) Capabilities() types.ModelCapabilities { return types.ModelCapabilities{} }
