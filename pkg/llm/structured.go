package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worldgraph/ace/pkg/types"
)

// Generate submits a single-shot prompt to the provider and returns the raw
// text. If schema is non-nil the provider is asked for structured JSON output
// matching it; on a parse failure the request is re-asked exactly once with
// an added correction instruction before surfacing MalformedOutput.
func Generate(ctx context.Context, p Provider, systemPrompt, prompt string, schema *Schema, temperature float64) (string, error) {
	return Chat(ctx, p, systemPrompt, []types.Message{{Role: "user", Content: prompt}}, schema, temperature)
}

// Chat submits a multi-turn conversation to the provider. See Generate for the
// structured-output and reask contract.
func Chat(ctx context.Context, p Provider, systemPrompt string, messages []types.Message, schema *Schema, temperature float64) (string, error) {
	req := CompletionRequest{
		SystemPrompt:   systemPrompt,
		Messages:       messages,
		ResponseSchema: schema,
		Temperature:    temperature,
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		return "", classifyCompletionErr(ctx, err)
	}

	text := stripMarkdownFence(resp.Content)
	if schema == nil {
		return text, nil
	}

	if validateJSON(text) == nil {
		return text, nil
	}

	// Re-ask once with the prior (malformed) output and an explicit correction
	// instruction appended to the conversation.
	retryMessages := append(append([]types.Message{}, messages...), types.Message{
		Role: "user",
		Content: fmt.Sprintf(
			"Your previous response was not valid JSON matching the required schema. "+
				"Previous response:\n%s\n\nRespond again with ONLY a valid JSON object matching the schema, no commentary, no markdown fences.",
			text,
		),
	})

	retryReq := CompletionRequest{
		SystemPrompt:   systemPrompt,
		Messages:       retryMessages,
		ResponseSchema: schema,
		Temperature:    temperature,
	}

	retryResp, err := p.Complete(ctx, retryReq)
	if err != nil {
		return "", classifyCompletionErr(ctx, err)
	}

	retryText := stripMarkdownFence(retryResp.Content)
	if err := validateJSON(retryText); err != nil {
		return "", types.NewError(types.KindMalformedOutput, "structured output failed to parse after reask", err)
	}

	return retryText, nil
}

// Embed delegates to the provider's Embed method, wrapping any failure with
// the ACE error taxonomy.
func Embed(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	resp, err := p.Embed(ctx, texts)
	if err != nil {
		return nil, classifyCompletionErr(ctx, err)
	}
	return resp.Vectors, nil
}

func classifyCompletionErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return types.NewError(types.KindCancelled, "llm call cancelled", err)
	}
	var ace *types.Error
	if e, ok := err.(*types.Error); ok {
		ace = e
		return ace
	}
	return types.NewError(types.KindBackendUnavailable, "llm call failed", err)
}

// stripMarkdownFence removes a leading/trailing ```json ... ``` or ``` ... ```
// fence that chat models frequently wrap structured output in, despite being
// asked for raw JSON.
func stripMarkdownFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func validateJSON(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}
