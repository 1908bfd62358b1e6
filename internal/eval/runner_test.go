package eval

import (
	"context"
	"testing"

	"github.com/worldgraph/ace/internal/workflow"
	graphmock "github.com/worldgraph/ace/pkg/graph/mock"
	"github.com/worldgraph/ace/pkg/llm"
	llmmock "github.com/worldgraph/ace/pkg/llm/mock"
	"github.com/worldgraph/ace/pkg/prompt"
	vectormock "github.com/worldgraph/ace/pkg/vector/mock"
)

const runnerDraftJSON = `{
	"text": "The Ashen Concord controls the Glass Mines.",
	"entities": [{"canonical_id": "faction-ashen-concord", "type": "Faction", "properties": {"name": "Ashen Concord", "alignment": "neutral"}}],
	"relationships": [],
	"confidence": 0.9,
	"reasoning": "grounded in retrieved context"
}`

const judgeVerdictJSON = `{
	"claims": [{"claim": "The Ashen Concord controls the Glass Mines", "grounded": true}],
	"evidence": [{"evidence": "Ashen Concord controls Glass Mines", "covered": true}],
	"consistent": true,
	"score": 1.0
}`

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	reg, err := prompt.Load()
	if err != nil {
		t.Fatalf("prompt.Load: %v", err)
	}

	wfProvider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: runnerDraftJSON}}
	wf := workflow.New(wfProvider, reg, graphmock.New(), vectormock.New())

	judgeProvider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: judgeVerdictJSON},
		EmbedResponse:    &llm.EmbeddingResponse{Vectors: [][]float32{{1, 0}, {1, 0}}},
	}
	scorer := NewScorer(judgeProvider, reg)

	return NewRunner(wf, scorer, Defaults{Faithfulness: 0.97, Coverage: 0.80})
}

func TestRunnerProducesPassingReport(t *testing.T) {
	runner := newTestRunner(t)

	dataset := Dataset{
		Version: "test-1",
		TestCases: []Case{
			{
				ID:          "s3-query-resource-control",
				Category:    "retrieval",
				Query:       "What resources does the Ashen Concord control?",
				MustInclude: []string{"Glass Mines"},
			},
		},
	}

	report := runner.Run(context.Background(), dataset)
	if report.Total != 1 || report.Passed != 1 || report.Failed != 0 {
		t.Fatalf("expected 1/1 passed, got %+v", report)
	}
	if report.Recommendation != RecommendPass {
		t.Fatalf("expected PASS, got %s", report.Recommendation)
	}
}

func TestRunnerFlagsMustIncludeViolation(t *testing.T) {
	runner := newTestRunner(t)

	dataset := Dataset{
		TestCases: []Case{
			{ID: "c1", Query: "query", MustInclude: []string{"Diamond Mines"}},
		},
	}

	report := runner.Run(context.Background(), dataset)
	if report.Passed != 0 || report.Failed != 1 {
		t.Fatalf("expected the case to fail on a missing required phrase, got %+v", report)
	}
	if len(report.Results[0].Violations) == 0 {
		t.Fatal("expected a recorded violation")
	}
}

func TestRunnerRecommendsReviewRequiredOnEmptyDataset(t *testing.T) {
	runner := newTestRunner(t)

	report := runner.Run(context.Background(), Dataset{})
	if report.Recommendation != RecommendReviewRequired {
		t.Fatalf("expected REVIEW_REQUIRED for an empty dataset, got %s", report.Recommendation)
	}
}
