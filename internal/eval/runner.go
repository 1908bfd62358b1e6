package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/worldgraph/ace/internal/workflow"
)

const (
	recommendPassFaithfulness   = 0.97
	recommendFailFaithfulness   = 0.95
	recommendFailFailureRateMax = 0.20
)

// Defaults supplies the global pass/fail bars a case falls back to when it
// does not carry its own Thresholds.
type Defaults struct {
	Faithfulness float64
	Coverage     float64
}

// Runner executes a golden dataset sequentially against the inference
// workflow, scoring each response and aggregating a regression report.
// Sequential execution avoids saturating the LM backend, per the harness
// contract.
type Runner struct {
	workflow *workflow.Workflow
	scorer   *Scorer
	defaults Defaults
}

// NewRunner wires a Runner against the inference workflow under test, a
// Scorer for grading its responses, and the global default thresholds.
func NewRunner(wf *workflow.Workflow, scorer *Scorer, defaults Defaults) *Runner {
	return &Runner{workflow: wf, scorer: scorer, defaults: defaults}
}

// Run invokes the workflow for every case in dataset, scores the response,
// and returns an aggregate Report. Cases run strictly one at a time.
func (r *Runner) Run(ctx context.Context, dataset Dataset) Report {
	results := make([]CaseResult, 0, len(dataset.TestCases))

	for _, c := range dataset.TestCases {
		results = append(results, r.runCase(ctx, c))
	}

	return r.aggregate(results)
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	result := CaseResult{ID: c.ID, Category: c.Category}

	outcome, err := r.workflow.Run(ctx, c.Query)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var generatedText string
	if outcome.Draft != nil {
		generatedText = outcome.Draft.Text
	}
	retrievedContext := contextSummary(outcome.Context)

	faithfulness, ungrounded, err := r.scorer.Faithfulness(ctx, generatedText, retrievedContext)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("faithfulness: %v", err))
	}
	result.Faithfulness = faithfulness
	result.UngroundedClaims = ungrounded

	coverage, missed, err := r.scorer.Coverage(ctx, generatedText, retrievedContext)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("coverage: %v", err))
	}
	result.Coverage = coverage
	result.MissedEvidence = missed

	if c.Expected != "" {
		accuracy, err := r.scorer.Accuracy(ctx, generatedText, c.Expected)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("accuracy: %v", err))
		}
		result.Accuracy = accuracy
	}

	var violations []string
	lower := strings.ToLower(generatedText)
	for _, must := range c.MustInclude {
		if !strings.Contains(lower, strings.ToLower(must)) {
			violations = append(violations, fmt.Sprintf("missing required text %q", must))
		}
	}
	for _, mustNot := range c.MustNotInclude {
		if strings.Contains(lower, strings.ToLower(mustNot)) {
			violations = append(violations, fmt.Sprintf("contains forbidden text %q", mustNot))
		}
	}
	result.Violations = violations

	faithThreshold, coverThreshold := r.thresholds(c)
	result.Passed = outcome.Success &&
		len(violations) == 0 &&
		len(result.Errors) == 0 &&
		faithfulness >= faithThreshold &&
		coverage >= coverThreshold

	return result
}

func (r *Runner) thresholds(c Case) (faithfulness, coverage float64) {
	faithfulness, coverage = r.defaults.Faithfulness, r.defaults.Coverage
	if c.Thresholds == nil {
		return faithfulness, coverage
	}
	if c.Thresholds.Faithfulness > 0 {
		faithfulness = c.Thresholds.Faithfulness
	}
	if c.Thresholds.Coverage > 0 {
		coverage = c.Thresholds.Coverage
	}
	return faithfulness, coverage
}

func (r *Runner) aggregate(results []CaseResult) Report {
	report := Report{Total: len(results), Results: results}
	if len(results) == 0 {
		report.Recommendation = RecommendReviewRequired
		return report
	}

	var faithSum, coverSum float64
	for _, res := range results {
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		faithSum += res.Faithfulness
		coverSum += res.Coverage
	}
	report.AvgFaithfulness = faithSum / float64(len(results))
	report.AvgCoverage = coverSum / float64(len(results))

	failureRate := float64(report.Failed) / float64(report.Total)
	switch {
	case report.Failed == 0 && report.AvgFaithfulness >= recommendPassFaithfulness:
		report.Recommendation = RecommendPass
	case report.AvgFaithfulness < recommendFailFaithfulness || failureRate > recommendFailFailureRateMax:
		report.Recommendation = RecommendFail
	default:
		report.Recommendation = RecommendReviewRequired
	}

	return report
}

// contextSummary renders a RetrievedContext into the flat text the judge
// prompts expect, mirroring the Narrator's own context assembly without the
// Narrator's entity/relation/passage caps, since the judge needs the full
// retrieved evidence to grade faithfulness and coverage honestly.
func contextSummary(retrieved workflow.RetrievedContext) string {
	var b strings.Builder

	b.WriteString("Entities:\n")
	for _, e := range retrieved.Entities {
		name, _ := e.Properties["name"].(string)
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", e.Type, name, e.CanonicalID)
	}

	b.WriteString("\nRelations:\n")
	for _, rel := range retrieved.Relations {
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", rel.From, rel.Type, rel.To)
	}

	b.WriteString("\nLore passages:\n")
	for _, h := range retrieved.VectorHits {
		fmt.Fprintf(&b, "- (score %.2f) %v\n", h.Score, h.Metadata)
	}

	return b.String()
}
