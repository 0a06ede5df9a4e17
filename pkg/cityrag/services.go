package cityrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// Embedder converts text to a vector. Its width must match the corpus index.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Reranker scores each text against the question. Scores are returned in input
// order; higher is more relevant.
type Reranker interface {
	Score(ctx context.Context, question string, texts []string) ([]float64, error)
}

// Generator answers a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult is a model reply. OK is false when the reply had no answer text;
// Raw then holds the response body for diagnostics.
type GenerationResult struct {
	Text        string
	OK          bool
	Raw         string
	TotalTokens int
}

// healthChecker is implemented by services that can report their availability.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc := checkerOf(a.inner); hc != nil {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// generatorAdapter wraps public Generator to satisfy the pipeline generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, prompt)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	return domain.GenerationResult{
		Text:        r.Text,
		OK:          r.OK,
		Raw:         r.Raw,
		TotalTokens: r.TotalTokens,
	}, nil
}

// checkerOf returns v as a health checker, or nil when v cannot report health.
func checkerOf(v any) healthChecker {
	if hc, ok := v.(healthChecker); ok {
		return hc
	}
	return nil
}
