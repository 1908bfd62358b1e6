package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidLMBackends lists the [Registry]-known LM backend names. Used by
// [Validate] to reject unrecognised backend names.
var ValidLMBackends = []string{"openai", "anyllm"}

// defaults fills in every field Config leaves zero, matching spec.md's
// named defaults.
var defaults = Config{
	Server: ServerConfig{
		ListenAddr: ":8080",
		LogLevel:   LogInfo,
	},
	Ingestion: IngestionConfig{
		Workers: 4,
	},
	Jobs: JobsConfig{
		StatusRetention: time.Hour,
	},
	LM: LMConfig{
		Backend:         "openai",
		RequestDeadline: 30 * time.Second,
	},
	Workflow: WorkflowConfig{
		QueryDeadline:          60 * time.Second,
		FaithfulnessThreshold:  0.97,
		CoverageThreshold:      0.80,
		MaxInferenceIterations: 3,
	},
}

// Load reads the YAML configuration file at path, applies defaults and
// environment overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment overrides, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := defaults
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// lookupFunc matches os.LookupEnv's signature so tests can inject a fake
// environment without mutating process-global state.
type lookupFunc func(string) (string, bool)

// ApplyEnv overrides cfg's fields from the enumerated environment inputs in
// spec.md §6, using lookup to resolve each variable. Environment values win
// over whatever the YAML file (or the built-in defaults) set.
func ApplyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	if v, ok := lookup("GRAPH_URI"); ok {
		cfg.Graph.URI = v
	}
	if v, ok := lookup("GRAPH_USER"); ok {
		cfg.Graph.User = v
	}
	if v, ok := lookup("GRAPH_PASSWORD"); ok {
		cfg.Graph.Password = v
	}
	if v, ok := lookup("VECTOR_URL"); ok {
		cfg.Vector.URL = v
	}
	if v, ok := lookup("LM_HOST"); ok {
		cfg.LM.Host = v
	}
	if v, ok := lookup("LM_MODEL"); ok {
		cfg.LM.Model = v
	}
	if v, ok := lookup("LM_EMBED_MODEL"); ok {
		cfg.LM.EmbedModel = v
	}
	if v, ok := lookup("LM_BACKEND"); ok {
		cfg.LM.Backend = v
	}
	if v, ok := lookup("LM_API_KEY"); ok {
		cfg.LM.APIKey = v
	}

	if v, ok := lookup("INGESTION_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INGESTION_WORKERS=%q: %w", v, err))
		} else {
			cfg.Ingestion.Workers = n
		}
	}
	if v, ok := lookup("JOB_STATUS_RETENTION"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("JOB_STATUS_RETENTION=%q: %w", v, err))
		} else {
			cfg.Jobs.StatusRetention = d
		}
	}
	if v, ok := lookup("QUERY_DEADLINE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("QUERY_DEADLINE=%q: %w", v, err))
		} else {
			cfg.Workflow.QueryDeadline = d
		}
	}
	if v, ok := lookup("LM_REQUEST_DEADLINE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LM_REQUEST_DEADLINE=%q: %w", v, err))
		} else {
			cfg.LM.RequestDeadline = d
		}
	}
	if v, ok := lookup("FAITHFULNESS_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FAITHFULNESS_THRESHOLD=%q: %w", v, err))
		} else {
			cfg.Workflow.FaithfulnessThreshold = f
		}
	}
	if v, ok := lookup("COVERAGE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("COVERAGE_THRESHOLD=%q: %w", v, err))
		} else {
			cfg.Workflow.CoverageThreshold = f
		}
	}
	if v, ok := lookup("MAX_INFERENCE_ITERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_INFERENCE_ITERATIONS=%q: %w", v, err))
		} else {
			cfg.Workflow.MaxInferenceIterations = n
		}
	}

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Graph.URI == "" {
		errs = append(errs, errors.New("graph.uri is required"))
	}
	if cfg.Vector.URL == "" {
		errs = append(errs, errors.New("vector.url is required"))
	}

	if cfg.LM.Backend != "" && !validLMBackend(cfg.LM.Backend) {
		errs = append(errs, fmt.Errorf("lm.backend %q is invalid; valid values: %v", cfg.LM.Backend, ValidLMBackends))
	}
	if cfg.LM.Model == "" {
		errs = append(errs, errors.New("lm.model is required"))
	}
	if cfg.LM.Fallback != nil {
		if cfg.LM.Fallback.Backend != "" && !validLMBackend(cfg.LM.Fallback.Backend) {
			errs = append(errs, fmt.Errorf("lm.fallback.backend %q is invalid; valid values: %v", cfg.LM.Fallback.Backend, ValidLMBackends))
		}
		if cfg.LM.Fallback.Model == "" {
			errs = append(errs, errors.New("lm.fallback.model is required when lm.fallback is set"))
		}
	}

	if cfg.Ingestion.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingestion.workers %d must be positive", cfg.Ingestion.Workers))
	}
	if cfg.Jobs.StatusRetention <= 0 {
		errs = append(errs, fmt.Errorf("jobs.status_retention %s must be positive", cfg.Jobs.StatusRetention))
	}

	if cfg.Workflow.MaxInferenceIterations <= 0 {
		errs = append(errs, fmt.Errorf("workflow.max_inference_iterations %d must be positive", cfg.Workflow.MaxInferenceIterations))
	}
	if cfg.Workflow.FaithfulnessThreshold < 0 || cfg.Workflow.FaithfulnessThreshold > 1 {
		errs = append(errs, fmt.Errorf("workflow.faithfulness_threshold %.2f must be in [0, 1]", cfg.Workflow.FaithfulnessThreshold))
	}
	if cfg.Workflow.CoverageThreshold < 0 || cfg.Workflow.CoverageThreshold > 1 {
		errs = append(errs, fmt.Errorf("workflow.coverage_threshold %.2f must be in [0, 1]", cfg.Workflow.CoverageThreshold))
	}

	return errors.Join(errs...)
}

func validLMBackend(name string) bool {
	for _, b := range ValidLMBackends {
		if b == name {
			return true
		}
	}
	return false
}
