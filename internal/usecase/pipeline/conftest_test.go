package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

// --- Mocks ---

type mockEmbedder struct {
	vec []float32
	err error
	got string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.got = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 8}, nil
}

type mockSearcher struct {
	hits  []candidate.Candidate
	err   error
	gotK  int
	calls int
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, k int) ([]candidate.Candidate, error) {
	m.calls++
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	out := make([]candidate.Candidate, len(m.hits))
	copy(out, m.hits)
	return out, nil
}

// mockReranker scores by snippet text.
type mockReranker struct {
	scores map[string]float64
	err    error
	short  bool
}

func (m *mockReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = m.scores[t]
	}
	if m.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type mockGenerator struct {
	result domain.GenerationResult
	err    error
	prompt string
	calls  int
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (domain.GenerationResult, error) {
	m.calls++
	m.prompt = prompt
	return m.result, m.err
}

type mockBudget struct {
	err      error
	recorded int64
}

func (m *mockBudget) Check(context.Context) error { return m.err }
func (m *mockBudget) Record(tokens int64)         { m.recorded += tokens }

type countingPool struct {
	calls atomic.Int32
}

func (p *countingPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls.Add(1)
	return fn(ctx)
}

// --- Helpers ---

func snip(text, metricKey string) snippet.Snippet {
	return snippet.Snippet{
		ID:           text,
		Text:         text,
		DocType:      snippet.String("metric"),
		DistrictName: snippet.String("Kadıköy"),
		MetricKey:    snippet.String(metricKey),
	}
}

func hits(snippets ...snippet.Snippet) []candidate.Candidate {
	out := make([]candidate.Candidate, len(snippets))
	for i, s := range snippets {
		out[i] = candidate.Candidate{Snippet: s, Distance: float32(i)}
	}
	return out
}

func scored(pairs ...any) []candidate.Candidate {
	var out []candidate.Candidate
	for i := 0; i+1 < len(pairs); i += 2 {
		s := pairs[i].(snippet.Snippet)
		out = append(out, candidate.Candidate{Snippet: s, Score: pairs[i+1].(float64)})
	}
	return out
}

func ids(snippets []snippet.Snippet) []string {
	out := make([]string, len(snippets))
	for i := range snippets {
		out[i] = snippets[i].ID
	}
	return out
}

func okGeneration(text string) domain.GenerationResult {
	return domain.GenerationResult{Text: text, OK: true, TotalTokens: 40}
}
