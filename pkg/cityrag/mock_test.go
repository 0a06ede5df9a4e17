package cityrag

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
)

// --- askUseCase mock ---

type mockAskUC struct {
	fn    func(ctx context.Context, q query.Query) (answer.Result, error)
	calls int
}

func (m *mockAskUC) Run(ctx context.Context, q query.Query) (answer.Result, error) {
	m.calls++
	return m.fn(ctx, q)
}

// --- public service mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type healthyEmbedder struct {
	mockEmbedder
	err error
}

func (h *healthyEmbedder) HealthCheck(context.Context) error { return h.err }

type mockReranker struct {
	scores map[string]float64
}

func (m *mockReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = m.scores[t]
	}
	return out, nil
}

type mockGenerator struct {
	result GenerationResult
	err    error
	prompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (GenerationResult, error) {
	m.prompt = prompt
	return m.result, m.err
}

// --- corpus mock ---

type mockSearcher struct {
	hits []candidate.Candidate
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, k int) ([]candidate.Candidate, error) {
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockSearcher) Len() int { return len(m.hits) }

// usageAdder records token usage on the request context like the real pipeline stages.
func usageAdder(ctx context.Context, embedding, generation int) {
	u := domain.UsageFromContext(ctx)
	u.AddEmbeddingTokens(embedding)
	u.AddGenerationTokens(generation)
}
