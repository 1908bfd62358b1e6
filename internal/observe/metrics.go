// Package observe provides application-wide observability primitives for
// ACE: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ACE metrics.
const meterName = "github.com/worldgraph/ace"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per ingestion stage ---

	// ExtractDuration tracks the Extract stage's LLM call latency.
	ExtractDuration metric.Float64Histogram

	// DefineDuration tracks the Define stage's latency.
	DefineDuration metric.Float64Histogram

	// CanonicalizeDuration tracks the Canonicalize stage's latency, dominated
	// by vector similarity lookups and graph reads.
	CanonicalizeDuration metric.Float64Histogram

	// WriteDuration tracks the Write stage's graph commit latency.
	WriteDuration metric.Float64Histogram

	// IngestionDuration tracks end-to-end EDC pipeline latency for one job.
	IngestionDuration metric.Float64Histogram

	// --- Inference workflow ---

	// LLMDuration tracks LLM call latency across all agents (Historian,
	// Narrator, Checker). Use with attribute.String("agent", ...).
	LLMDuration metric.Float64Histogram

	// RetrievalDuration tracks context-retrieval latency (graph traversal
	// plus vector search) performed by the Historian.
	RetrievalDuration metric.Float64Histogram

	// WorkflowDuration tracks end-to-end inference workflow latency.
	WorkflowDuration metric.Float64Histogram

	// WorkflowIterations records how many Narrator/Checker iterations a
	// workflow run took before reaching END_OK or END_FAIL.
	WorkflowIterations metric.Int64Histogram

	// --- Evaluation scores ---

	// FaithfulnessScore records the Checker's contradiction-pass score per
	// workflow run.
	FaithfulnessScore metric.Float64Histogram

	// CoverageScore records golden-dataset coverage scores from the
	// evaluation harness.
	CoverageScore metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts LLM/graph/vector provider calls. Use with
	// attributes: attribute.String("provider", ...), attribute.String("kind", ...),
	// attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// JobsSubmitted counts ingestion jobs accepted onto the queue.
	JobsSubmitted metric.Int64Counter

	// JobsCompleted counts ingestion jobs that finished, successfully or not.
	// Use with attribute.String("status", ...).
	JobsCompleted metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// WorkflowFailures counts inference runs ending in END_FAIL. Use with
	// attribute.String("reason", ...).
	WorkflowFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of ingestion jobs currently running.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both LLM calls (hundreds of ms to several seconds) and graph/vector reads
// (single-digit ms).
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Ingestion stage histograms.
	if met.ExtractDuration, err = m.Float64Histogram("ace.ingestion.extract.duration",
		metric.WithDescription("Latency of the Extract stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DefineDuration, err = m.Float64Histogram("ace.ingestion.define.duration",
		metric.WithDescription("Latency of the Define stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CanonicalizeDuration, err = m.Float64Histogram("ace.ingestion.canonicalize.duration",
		metric.WithDescription("Latency of the Canonicalize stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WriteDuration, err = m.Float64Histogram("ace.ingestion.write.duration",
		metric.WithDescription("Latency of the Write stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestionDuration, err = m.Float64Histogram("ace.ingestion.duration",
		metric.WithDescription("End-to-end EDC pipeline latency for one ingestion job."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Inference workflow histograms.
	if met.LLMDuration, err = m.Float64Histogram("ace.llm.duration",
		metric.WithDescription("Latency of LLM inference calls across all agents."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = m.Float64Histogram("ace.workflow.retrieval.duration",
		metric.WithDescription("Latency of Historian context retrieval (graph plus vector search)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WorkflowDuration, err = m.Float64Histogram("ace.workflow.duration",
		metric.WithDescription("End-to-end inference workflow latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WorkflowIterations, err = m.Int64Histogram("ace.workflow.iterations",
		metric.WithDescription("Number of Narrator/Checker iterations per workflow run."),
	); err != nil {
		return nil, err
	}

	// Evaluation score histograms.
	if met.FaithfulnessScore, err = m.Float64Histogram("ace.eval.faithfulness",
		metric.WithDescription("Checker contradiction-pass score per workflow run."),
	); err != nil {
		return nil, err
	}
	if met.CoverageScore, err = m.Float64Histogram("ace.eval.coverage",
		metric.WithDescription("Golden-dataset coverage score per evaluation case."),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("ace.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.JobsSubmitted, err = m.Int64Counter("ace.jobs.submitted",
		metric.WithDescription("Total ingestion jobs accepted onto the queue."),
	); err != nil {
		return nil, err
	}
	if met.JobsCompleted, err = m.Int64Counter("ace.jobs.completed",
		metric.WithDescription("Total ingestion jobs completed, by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("ace.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.WorkflowFailures, err = m.Int64Counter("ace.workflow.failures",
		metric.WithDescription("Total inference runs ending in END_FAIL, by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("ace.jobs.active",
		metric.WithDescription("Number of ingestion jobs currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("ace.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordJobCompleted is a convenience method that records an ingestion job
// completion counter increment with its final status.
func (m *Metrics) RecordJobCompleted(ctx context.Context, status string) {
	m.JobsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordWorkflowFailure is a convenience method that records an inference
// workflow failure counter increment with its reason.
func (m *Metrics) RecordWorkflowFailure(ctx context.Context, reason string) {
	m.WorkflowFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
