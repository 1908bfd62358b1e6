package config

// ConfigDiff describes what changed between two configs.
// Only fields that are safe to hot-reload without restarting the
// graph/vector/LM adapters are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdsChanged        bool
	NewFaithfulnessThreshold float64
	NewCoverageThreshold     float64

	MaxIterationsChanged      bool
	NewMaxInferenceIterations int
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: the backend
// connection settings (graph, vector, LM) require a new adapter instance and
// are intentionally excluded.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Workflow.FaithfulnessThreshold != new.Workflow.FaithfulnessThreshold ||
		old.Workflow.CoverageThreshold != new.Workflow.CoverageThreshold {
		d.ThresholdsChanged = true
		d.NewFaithfulnessThreshold = new.Workflow.FaithfulnessThreshold
		d.NewCoverageThreshold = new.Workflow.CoverageThreshold
	}

	if old.Workflow.MaxInferenceIterations != new.Workflow.MaxInferenceIterations {
		d.MaxIterationsChanged = true
		d.NewMaxInferenceIterations = new.Workflow.MaxInferenceIterations
	}

	return d
}
