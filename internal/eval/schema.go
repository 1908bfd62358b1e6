package eval

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// claimAssessment and evidenceAssessment are the Go-native shapes used to
// derive JSON Schemas for the judge's structured output; see
// pkg/ontology/schema.go for the same pattern applied to narrator drafts.

type claimAssessment struct {
	Claim    string `json:"claim" jsonschema:"one atomic factual claim extracted from the generated text"`
	Grounded bool   `json:"grounded" jsonschema:"true only if retrieved_context directly supports the claim"`
}

type faithfulnessVerdict struct {
	Claims []claimAssessment `json:"claims"`
}

type evidenceAssessment struct {
	Evidence string `json:"evidence" jsonschema:"one evidence point present in the retrieved context"`
	Covered  bool   `json:"covered" jsonschema:"true only if the generated text addresses this evidence point"`
}

type coverageVerdict struct {
	Evidence []evidenceAssessment `json:"evidence"`
}

type consistencyVerdict struct {
	Consistent bool    `json:"consistent" jsonschema:"true if the generated text is factually consistent with the expected answer"`
	Score      float64 `json:"score" jsonschema:"consistency score in [0,1], 1 meaning fully consistent"`
}

func schemaFor[T any]() map[string]any {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("eval: derive schema: %v", err))
	}
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("eval: marshal schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("eval: unmarshal schema: %v", err))
	}
	return m
}

func faithfulnessSchema() map[string]any { return schemaFor[faithfulnessVerdict]() }
func coverageSchema() map[string]any     { return schemaFor[coverageVerdict]() }
func consistencySchema() map[string]any  { return schemaFor[consistencyVerdict]() }
