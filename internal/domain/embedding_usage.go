package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single pipeline request.
// The handler puts a mutable pointer into the context before calling the pipeline;
// the pipeline writes after each model call; the handler reads it for response headers.
type RequestUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by the query embedding.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
	}
}

// AddGenerationTokens records tokens consumed by the generative model.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u != nil {
		u.GenerationTokens += n
	}
}
