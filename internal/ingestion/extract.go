package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/worldgraph/ace/pkg/llm"
	"github.com/worldgraph/ace/pkg/prompt"
)

var extractionSchema = mustSchema()

func mustSchema() *llm.Schema {
	s, err := jsonschema.For[extractionResult](nil)
	if err != nil {
		panic(fmt.Sprintf("ingestion: derive extraction schema: %v", err))
	}
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("ingestion: marshal extraction schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("ingestion: unmarshal extraction schema: %v", err))
	}
	return &llm.Schema{Name: "extraction_result", Schema: m, Strict: true}
}

// extractTemperature follows the LM Adapter's extraction default (0.3).
const extractTemperature = 0.3

// extract runs the Extract stage: a single LM call that turns raw text into
// entity and relation mentions. Model output that still fails to parse
// after llm.Generate's one reask, or that does not decode into the result
// shape, is returned as an error; Run then reports the job as "failed" with
// that error in Errors. No empty result or warning is produced for it.
func (p *Pipeline) extract(ctx context.Context, text string) (extractionResult, StageTiming, error) {
	start := time.Now()

	entry, err := p.prompts.Get("extractor", "1.0.0")
	if err != nil {
		return extractionResult{}, StageTiming{Stage: "extract", Duration: time.Since(start)}, err
	}

	raw, err := llm.Generate(ctx, p.provider, entry.Content, text, extractionSchema, extractTemperature)
	timing := StageTiming{Stage: "extract", Duration: time.Since(start)}
	if err != nil {
		return extractionResult{}, timing, err
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return extractionResult{}, timing, fmt.Errorf("ingestion: extract: parse model output: %w", err)
	}
	return result, timing, nil
}
