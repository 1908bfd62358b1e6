package ingestion

import (
	"fmt"
	"time"

	"github.com/worldgraph/ace/pkg/ontology"
)

// define maps each extracted entity to its canonical type, assigns a
// transient id temp_<type>_<index>_<monotonic>, and validates its attributes.
// Each extracted relation's raw label is normalized via C1. No persistent
// writes happen here.
func (p *Pipeline) define(extraction extractionResult) ([]DefinedEntity, []DefinedRelation, StageTiming) {
	start := time.Now()

	defined := make([]DefinedEntity, 0, len(extraction.Entities))
	for i, e := range extraction.Entities {
		ok, violations := ontology.ValidateEntity(e.Type, e.Attributes)
		defined = append(defined, DefinedEntity{
			TransientID: fmt.Sprintf("temp_%s_%d_%d", e.Type, i, p.nextMonotonic()),
			Type:        e.Type,
			Mention:     e.Mention,
			Attributes:  e.Attributes,
			Confidence:  e.Confidence,
			Valid:       ok,
			Violations:  violations,
		})
	}

	relations := make([]DefinedRelation, 0, len(extraction.Relations))
	for _, r := range extraction.Relations {
		relations = append(relations, DefinedRelation{
			FromMention: r.FromMention,
			ToMention:   r.ToMention,
			Type:        ontology.NormalizeRelationLabel(r.RawType),
			Confidence:  r.Confidence,
		})
	}

	return defined, relations, StageTiming{Stage: "define", Duration: time.Since(start)}
}
