package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/prompt"
)

const (
	judgeVersion       = "1.0.0"
	judgeTemperature   = 0.2
	accuracyFactWeight = 0.7
	accuracySimWeight  = 0.3
)

// Scorer runs the three evaluation scorers against a provider acting in
// judge mode. It holds no per-call state and is safe for concurrent use,
// though the regression runner calls it sequentially by design.
type Scorer struct {
	provider llm.Provider
	prompts  *prompt.Registry
}

// NewScorer wires a Scorer against the shared LM provider and prompt
// registry.
func NewScorer(provider llm.Provider, prompts *prompt.Registry) *Scorer {
	return &Scorer{provider: provider, prompts: prompts}
}

func (s *Scorer) judgePrompt() (string, error) {
	entry, err := s.prompts.Get("judge", judgeVersion)
	if err != nil {
		return "", fmt.Errorf("eval: load judge prompt: %w", err)
	}
	return entry.Content, nil
}

// Faithfulness extracts atomic claims from generatedText and asks the judge
// to mark each grounded against retrievedContext. Score is grounded/total;
// an empty generated text scores 1.0 (nothing ungrounded to report).
func (s *Scorer) Faithfulness(ctx context.Context, generatedText, retrievedContext string) (float64, []string, error) {
	if strings.TrimSpace(generatedText) == "" {
		return 1.0, nil, nil
	}

	system, err := s.judgePrompt()
	if err != nil {
		return 0, nil, err
	}

	userPrompt := fmt.Sprintf(
		"Retrieved context:\n%s\n\nGenerated text:\n%s\n\nExtract every atomic factual claim from the generated text and mark grounded=true only if retrieved context directly supports it.",
		retrievedContext, generatedText,
	)

	schema := &llm.Schema{Name: "faithfulness_verdict", Schema: faithfulnessSchema(), Strict: true}
	raw, err := llm.Generate(ctx, s.provider, system, userPrompt, schema, judgeTemperature)
	if err != nil {
		return 0, nil, fmt.Errorf("eval: faithfulness judge call: %w", err)
	}

	var verdict faithfulnessVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return 0, nil, fmt.Errorf("eval: faithfulness verdict parse: %w", err)
	}
	if len(verdict.Claims) == 0 {
		return 1.0, nil, nil
	}

	var grounded int
	var ungrounded []string
	for _, c := range verdict.Claims {
		if c.Grounded {
			grounded++
		} else {
			ungrounded = append(ungrounded, c.Claim)
		}
	}
	return float64(grounded) / float64(len(verdict.Claims)), ungrounded, nil
}

// Coverage enumerates evidence points present in retrievedContext and asks
// the judge to mark each covered by generatedText. Score is covered/total;
// a context with no evidence points scores 1.0 (nothing to miss).
func (s *Scorer) Coverage(ctx context.Context, generatedText, retrievedContext string) (float64, []string, error) {
	system, err := s.judgePrompt()
	if err != nil {
		return 0, nil, err
	}

	userPrompt := fmt.Sprintf(
		"Retrieved context:\n%s\n\nGenerated text:\n%s\n\nEnumerate the evidence points present in the retrieved context and mark covered=true only if the generated text addresses it.",
		retrievedContext, generatedText,
	)

	schema := &llm.Schema{Name: "coverage_verdict", Schema: coverageSchema(), Strict: true}
	raw, err := llm.Generate(ctx, s.provider, system, userPrompt, schema, judgeTemperature)
	if err != nil {
		return 0, nil, fmt.Errorf("eval: coverage judge call: %w", err)
	}

	var verdict coverageVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return 0, nil, fmt.Errorf("eval: coverage verdict parse: %w", err)
	}
	if len(verdict.Evidence) == 0 {
		return 1.0, nil, nil
	}

	var covered int
	var missed []string
	for _, e := range verdict.Evidence {
		if e.Covered {
			covered++
		} else {
			missed = append(missed, e.Evidence)
		}
	}
	return float64(covered) / float64(len(verdict.Evidence)), missed, nil
}

// Accuracy compares generatedText against expected when a reference answer
// is supplied. It combines a judge-scored factual-consistency check (70%
// weight) with a cosine-similarity score over embeddings (30% weight). An
// empty expected answer means the case carries no reference and Accuracy
// returns 0 without calling the provider.
func (s *Scorer) Accuracy(ctx context.Context, generatedText, expected string) (float64, error) {
	if strings.TrimSpace(expected) == "" {
		return 0, nil
	}

	consistency, err := s.factualConsistency(ctx, generatedText, expected)
	if err != nil {
		return 0, err
	}

	similarity, err := s.semanticSimilarity(ctx, generatedText, expected)
	if err != nil {
		return 0, err
	}

	return accuracyFactWeight*consistency + accuracySimWeight*similarity, nil
}

func (s *Scorer) factualConsistency(ctx context.Context, generatedText, expected string) (float64, error) {
	system, err := s.judgePrompt()
	if err != nil {
		return 0, err
	}

	userPrompt := fmt.Sprintf(
		"Expected answer:\n%s\n\nGenerated answer:\n%s\n\nIs the generated answer factually consistent with the expected answer? Score in [0,1].",
		expected, generatedText,
	)

	schema := &llm.Schema{Name: "consistency_verdict", Schema: consistencySchema(), Strict: true}
	raw, err := llm.Generate(ctx, s.provider, system, userPrompt, schema, judgeTemperature)
	if err != nil {
		return 0, fmt.Errorf("eval: consistency judge call: %w", err)
	}

	var verdict consistencyVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return 0, fmt.Errorf("eval: consistency verdict parse: %w", err)
	}
	return verdict.Score, nil
}

func (s *Scorer) semanticSimilarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := llm.Embed(ctx, s.provider, []string{a, b})
	if err != nil {
		return 0, fmt.Errorf("eval: embed for similarity: %w", err)
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("eval: expected 2 embeddings, got %d", len(vecs))
	}
	return cosineSimilarity(vecs[0], vecs[1]), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
