// Package config provides the configuration schema, loader, and LM provider
// registry for ACE.
package config

import "time"

// Config is the root configuration structure for ACE.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// then overridden by the enumerated environment variables via [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Graph     GraphConfig     `yaml:"graph"`
	Vector    VectorConfig    `yaml:"vector"`
	LM        LMConfig        `yaml:"lm"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
}

// ServerConfig holds network and logging settings for the ACE process.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API and health endpoints listen
	// on in "serve" mode (e.g., ":8080"). The "mcp-serve" mode uses stdio and
	// does not read it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a closed set of slog verbosity levels.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}

// GraphConfig holds connection settings for the property-graph store.
type GraphConfig struct {
	// URI is the Postgres connection string for the graph store.
	URI string `yaml:"uri"`

	// User is the graph store username. It is loaded and overridable like
	// the other fields, but the graph store connects with URI alone and does
	// not apply it; credentials take effect only when embedded in URI.
	User string `yaml:"user"`

	// Password is the graph store password. Like User, it is not applied to
	// the connection, which uses URI alone.
	Password string `yaml:"password"`
}

// VectorConfig holds connection settings for the pgvector-backed similarity
// index.
type VectorConfig struct {
	// URL is the Postgres connection string for the vector store. It may
	// point at the same database as [GraphConfig.URI].
	URL string `yaml:"url"`
}

// LMConfig selects and configures the language-model backend shared by the
// ingestion pipeline and inference workflow.
type LMConfig struct {
	// Backend selects the registered factory in [Registry] used to
	// construct the provider. Valid values: "openai", "anyllm". Defaults
	// to "openai".
	Backend string `yaml:"backend"`

	// Host overrides the provider's default API endpoint for the "openai"
	// backend, or selects the underlying vendor (e.g. "anthropic",
	// "ollama") for the "anyllm" backend.
	Host string `yaml:"host"`

	// Model selects the chat/completion model.
	Model string `yaml:"model"`

	// EmbedModel selects the embedding model. Only consulted by backends
	// that support a distinct embedding model from the chat model.
	EmbedModel string `yaml:"embed_model"`

	// APIKey authenticates against the selected backend.
	APIKey string `yaml:"api_key"`

	// RequestDeadline bounds a single LM call.
	RequestDeadline time.Duration `yaml:"request_deadline"`

	// Fallback, when set, configures a secondary LM backend that
	// [Registry.CreateLM] fails over to whenever a call to the primary
	// fails; while the primary's circuit breaker is open, calls go straight
	// to the fallback. A fallback's own Fallback field is ignored; chains are
	// one level deep.
	Fallback *LMConfig `yaml:"fallback"`
}

// IngestionConfig configures the EDC pipeline's worker pool.
type IngestionConfig struct {
	// Workers is the number of concurrent ingestion jobs the queue runs.
	Workers int `yaml:"workers"`
}

// JobsConfig configures the ingestion job tracker.
type JobsConfig struct {
	// StatusRetention is how long a completed job's status remains
	// queryable before the tracker's sweeper evicts it.
	StatusRetention time.Duration `yaml:"status_retention"`
}

// WorkflowConfig configures the inference workflow's deadlines and
// evaluation gates.
type WorkflowConfig struct {
	// QueryDeadline is loaded and overridable like the other fields, but no
	// query path reads it: a Historian→Narrator→Checker run is bounded only
	// by the context its caller passes in.
	QueryDeadline time.Duration `yaml:"query_deadline"`

	// FaithfulnessThreshold is the Checker's minimum consistency score for
	// a draft to reach END_OK.
	FaithfulnessThreshold float64 `yaml:"faithfulness_threshold"`

	// CoverageThreshold is the default golden-dataset coverage gate
	// inherited by test cases that don't specify their own.
	CoverageThreshold float64 `yaml:"coverage_threshold"`

	// MaxInferenceIterations bounds the number of Narrator/Checker rounds
	// before the workflow forces END_FAIL.
	MaxInferenceIterations int `yaml:"max_inference_iterations"`
}
