package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/ontology"
	"github.com/worldgraph/ace/pkg/types"
)

const (
	narratorTemperature = 0.7
	topEntities         = 10
	topRelations        = 10
	topPassages         = 3
)

// narrate runs the Narrator node: load the versioned prompt, assemble a
// context summary from the Historian's retrieval, and request a structured
// draft. A JSON parse failure after the provider's own reask is surfaced as
// an invalid ValidationResult rather than a fatal error, per the
// "propagate as a checker-style invalid result" contract.
func (w *Workflow) narrate(ctx context.Context, query string, retrieved RetrievedContext, prior *ValidationResult) (*ontology.GeneratedDraft, *ValidationResult, error) {
	entry, err := w.prompts.Get("narrator", w.narratorVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: narrator: load prompt: %w", err)
	}

	userPrompt := buildNarratorPrompt(query, retrieved, prior)

	schema := &llm.Schema{Name: "narrator_draft", Schema: ontology.NarratorDraftSchema(), Strict: true}
	raw, err := llm.Generate(ctx, w.provider, entry.Content, userPrompt, schema, narratorTemperature)
	if types.KindOf(err) == types.KindMalformedOutput {
		return nil, &ValidationResult{
			Valid:       false,
			Suggestions: []string{"reparse"},
		}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: narrator: generate: %w", err)
	}

	var draft ontology.GeneratedDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, &ValidationResult{
			Valid:       false,
			Suggestions: []string{"reparse"},
		}, nil
	}

	return &draft, nil, nil
}

func buildNarratorPrompt(query string, retrieved RetrievedContext, prior *ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)

	b.WriteString("Known entities:\n")
	for i, e := range retrieved.Entities {
		if i >= topEntities {
			break
		}
		name, _ := e.Properties["name"].(string)
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", e.Type, name, e.CanonicalID)
	}

	b.WriteString("\nKnown relations:\n")
	for i, r := range retrieved.Relations {
		if i >= topRelations {
			break
		}
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", r.From, r.Type, r.To)
	}

	b.WriteString("\nRelevant lore passages:\n")
	for i, h := range retrieved.VectorHits {
		if i >= topPassages {
			break
		}
		fmt.Fprintf(&b, "- (score %.2f) %v\n", h.Score, h.Metadata)
	}

	if prior != nil {
		b.WriteString("\nYour previous draft was rejected by the consistency checker:\n")
		for _, e := range prior.SchemaErrors {
			fmt.Fprintf(&b, "- schema: %s\n", e)
		}
		for _, c := range prior.Contradictions {
			fmt.Fprintf(&b, "- contradiction: %s.%s proposed %v but the graph has %v\n", c.EntityID, c.Property, c.ValueA, c.ValueB)
		}
		for _, s := range prior.Suggestions {
			fmt.Fprintf(&b, "- suggestion: %s\n", s)
		}
		b.WriteString("Revise your draft to resolve every issue above.\n")
	}

	return b.String()
}
