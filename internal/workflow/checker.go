package workflow

import (
	"context"
	"fmt"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/ontology"
)

// check runs the Consistency Checker's two passes against a Narrator draft:
// schema validation, then contradiction detection against the graph's
// existing entities. checks/issues accumulate across both passes so the
// final score reflects the draft as a whole.
func (w *Workflow) check(ctx context.Context, draft *ontology.GeneratedDraft) (ValidationResult, error) {
	var (
		checks, issues int
		schemaErrors   []string
		contradictions []graph.Contradiction
	)

	knownEntities := make(map[string]ontology.EntityType, len(draft.Entities))
	for _, e := range draft.Entities {
		checks++
		typ := ontology.EntityType(e.Type)
		ok, violations := ontology.ValidateEntity(typ, e.Properties)
		if !ok {
			issues++
			schemaErrors = append(schemaErrors, fmt.Sprintf("entity %s: %v", e.CanonicalID, violations))
			continue
		}
		knownEntities[e.CanonicalID] = typ
	}

	for _, r := range draft.Relationships {
		checks++
		rt := ontology.RelationType(r.Type)
		if !rt.Valid() {
			issues++
			schemaErrors = append(schemaErrors, fmt.Sprintf("relation %s -[%s]-> %s: unknown relation type", r.From, r.Type, r.To))
			continue
		}
		if _, fromOK := knownEntities[r.From]; !fromOK {
			issues++
			schemaErrors = append(schemaErrors, fmt.Sprintf("relation %s -[%s]-> %s: unknown from endpoint", r.From, r.Type, r.To))
			continue
		}
		if _, toOK := knownEntities[r.To]; !toOK {
			issues++
			schemaErrors = append(schemaErrors, fmt.Sprintf("relation %s -[%s]-> %s: unknown to endpoint", r.From, r.Type, r.To))
		}
	}

	for _, e := range draft.Entities {
		typ, ok := knownEntities[e.CanonicalID]
		if !ok {
			continue
		}
		name, _ := e.Properties["name"].(string)
		if name == "" {
			continue
		}
		existing, err := w.graphStore.GetEntityByName(ctx, typ, name)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("workflow: checker: lookup %q: %w", name, err)
		}
		if existing == nil {
			continue
		}
		for key, proposed := range e.Properties {
			current, ok := existing.Properties[key]
			if !ok || isEmpty(current) || isEmpty(proposed) {
				continue
			}
			checks++
			if fmt.Sprintf("%v", current) != fmt.Sprintf("%v", proposed) {
				issues++
				contradictions = append(contradictions, graph.Contradiction{
					EntityID: existing.CanonicalID,
					Property: key,
					ValueA:   proposed,
					ValueB:   current,
				})
			}
		}
	}

	score := 1.0
	if checks > 0 {
		score = float64(checks-issues) / float64(checks)
	}

	valid := len(schemaErrors) == 0 && len(contradictions) == 0 && score >= w.FaithfulnessThreshold()

	var suggestions []string
	if !valid {
		suggestions = append(suggestions, "revise draft to resolve the reported schema errors and contradictions")
	}

	return ValidationResult{
		Valid:          valid,
		SchemaErrors:   schemaErrors,
		Contradictions: contradictions,
		Score:          score,
		Suggestions:    suggestions,
	}, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
