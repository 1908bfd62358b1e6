package llm

import (
	"context"

	"github.com/worldgraph/ace/internal/resilience"
	"github.com/worldgraph/ace/pkg/types"
)

// FallbackProvider fronts a primary [Provider] with one or more fallbacks,
// using an [resilience.FallbackGroup] to skip a provider whose circuit
// breaker is open and fail over to the next healthy one. It implements
// [Provider] itself so callers (the ingestion pipeline, the inference
// workflow) don't need to know a fallback chain is in play.
type FallbackProvider struct {
	group *resilience.FallbackGroup[Provider]
	// primary backs CountTokens and Capabilities, which are local,
	// non-network calls that don't benefit from failover.
	primary Provider
}

// NewFallbackProvider wraps primary (labelled primaryName in logs) with a
// circuit breaker. Use [FallbackProvider.AddFallback] to register additional
// backends to fail over to.
func NewFallbackProvider(primary Provider, primaryName string, cfg resilience.FallbackConfig) *FallbackProvider {
	return &FallbackProvider{
		group:   resilience.NewFallbackGroup(primary, primaryName, cfg),
		primary: primary,
	}
}

// AddFallback appends a fallback provider, tried after primary and any
// previously added fallbacks, in order.
func (fp *FallbackProvider) AddFallback(name string, fallback Provider) {
	fp.group.AddFallback(name, fallback)
}

// Complete implements [Provider] by trying each backend in order until one
// succeeds.
func (fp *FallbackProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return resilience.ExecuteWithResult(fp.group, func(p Provider) (*CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion implements [Provider] by trying each backend in order
// until one accepts the stream. Once a backend starts streaming, failures
// mid-stream are surfaced as a final [Chunk] with a non-empty FinishReason
// rather than triggering failover, since partial output has already been
// emitted to the caller.
func (fp *FallbackProvider) StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	return resilience.ExecuteWithResult(fp.group, func(p Provider) (<-chan Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Embed implements [Provider] by trying each backend in order until one
// succeeds.
func (fp *FallbackProvider) Embed(ctx context.Context, texts []string) (*EmbeddingResponse, error) {
	return resilience.ExecuteWithResult(fp.group, func(p Provider) (*EmbeddingResponse, error) {
		return p.Embed(ctx, texts)
	})
}

// CountTokens delegates to the primary backend. Token counting is a local
// estimate, not a network call, so there is nothing for a fallback to
// recover from.
func (fp *FallbackProvider) CountTokens(messages []types.Message) (int, error) {
	return fp.primary.CountTokens(messages)
}

// Capabilities delegates to the primary backend.
func (fp *FallbackProvider) Capabilities() types.ModelCapabilities {
	return fp.primary.Capabilities()
}

var _ Provider = (*FallbackProvider)(nil)
