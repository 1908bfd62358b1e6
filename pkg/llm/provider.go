// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, or anything reachable through any-llm-go) and exposes a
// uniform interface for completions, structured output, embeddings, and token
// accounting without coupling the rest of ACE to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/worldgraph/ace/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and system
	// prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Schema constrains a completion to emit structured JSON matching it. Name
// labels the response format for providers that require one (OpenAI's
// json_schema mode); Strict asks the backend to enforce the schema exactly
// rather than treat it as a hint.
type Schema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages must
// be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []types.Message

	// Tools is the set of function/tool definitions offered to the model.
	Tools []types.ToolDefinition

	// ResponseSchema, when non-nil, requests structured JSON output
	// constrained to this schema instead of free-form text.
	ResponseSchema *Schema

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history.
	SystemPrompt string
}

// Chunk is a single token or fragment emitted by a streaming completion.
type Chunk struct {
	Text         string
	FinishReason string
	ToolCalls    []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// ToolCalls lists all tool invocations requested by the model.
	ToolCalls []types.ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage

	// Truncated is true when the backend stopped generation at MaxTokens
	// before reaching a natural finish reason.
	Truncated bool
}

// EmbeddingResponse is returned by Embed: one vector per input text, in order.
type EmbeddingResponse struct {
	Vectors [][]float32
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines. Each
// method should propagate context cancellation promptly.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel that
	// emits Chunk values as they arrive. The channel is closed by the implementation
	// when generation finishes or when ctx is cancelled.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Embed returns one embedding vector per entry in texts, in the same order.
	Embed(ctx context.Context, texts []string) (*EmbeddingResponse, error)

	// CountTokens estimates the number of tokens that the given message list would
	// consume in the model's context window.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's underlying
	// model supports.
	Capabilities() types.ModelCapabilities
}
