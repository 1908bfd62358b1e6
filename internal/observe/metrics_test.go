package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"ace.ingestion.extract.duration", m.ExtractDuration},
		{"ace.ingestion.define.duration", m.DefineDuration},
		{"ace.ingestion.canonicalize.duration", m.CanonicalizeDuration},
		{"ace.ingestion.write.duration", m.WriteDuration},
		{"ace.ingestion.duration", m.IngestionDuration},
		{"ace.llm.duration", m.LLMDuration},
		{"ace.workflow.retrieval.duration", m.RetrievalDuration},
		{"ace.workflow.duration", m.WorkflowDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestWorkflowIterationsHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.WorkflowIterations.Record(ctx, 1)
	m.WorkflowIterations.Record(ctx, 3)

	rm := collect(t, reader)
	met := findMetric(rm, "ace.workflow.iterations")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestEvalScoreHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FaithfulnessScore.Record(ctx, 0.97)
	m.CoverageScore.Record(ctx, 0.85)

	rm := collect(t, reader)

	for _, name := range []string{"ace.eval.faithfulness", "ace.eval.coverage"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("metric %q is not a histogram", name)
		}
		if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
			t.Errorf("metric %q sample count wrong", name)
		}
	}
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	attrs := metric.WithAttributes(
		attribute.String("provider", "openai"),
		attribute.String("kind", "llm"),
		attribute.String("status", "ok"),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", "openai"),
		attribute.String("kind", "llm"),
		attribute.String("status", "error"),
	))

	rm := collect(t, reader)
	met := findMetric(rm, "ace.provider.requests")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	// Find the data point with status=ok.
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "ok" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with status=ok not found")
}

func TestJobsSubmittedAndCompletedCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.JobsSubmitted.Add(ctx, 1)
	m.JobsSubmitted.Add(ctx, 1)
	m.RecordJobCompleted(ctx, "completed")
	m.RecordJobCompleted(ctx, "failed")

	rm := collect(t, reader)

	submitted := findMetric(rm, "ace.jobs.submitted")
	if submitted == nil {
		t.Fatal("ace.jobs.submitted not found")
	}
	sum, ok := submitted.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 2 {
		t.Errorf("ace.jobs.submitted = %+v, want 2", sum)
	}

	completed := findMetric(rm, "ace.jobs.completed")
	if completed == nil {
		t.Fatal("ace.jobs.completed not found")
	}
	csum, ok := completed.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("ace.jobs.completed is not a sum")
	}
	for _, dp := range csum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "failed" && dp.Value != 1 {
				t.Errorf("failed completion count = %d, want 1", dp.Value)
			}
		}
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "openai", "llm")

	rm := collect(t, reader)
	met := findMetric(rm, "ace.provider.errors")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("counter value = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestWorkflowFailuresCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWorkflowFailure(ctx, "max_iterations")

	rm := collect(t, reader)
	met := findMetric(rm, "ace.workflow.failures")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("ace.workflow.failures = %+v, want 1", sum)
	}
}

func TestActiveJobsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveJobs.Add(ctx, 1)
	m.ActiveJobs.Add(ctx, 1)
	m.ActiveJobs.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "ace.jobs.active")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "ace.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
