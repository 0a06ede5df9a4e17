package pipeline

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
)

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher returns the k nearest corpus snippets to a vector, closest first.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]candidate.Candidate, error)
}

// Reranker scores each text against the question, in input order.
type Reranker interface {
	Score(ctx context.Context, question string, texts []string) ([]float64, error)
}

// Generator answers a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.GenerationResult, error)
}

// Budget gates and records generation token spend.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Pool runs compute-heavy stages with bounded concurrency.
type Pool interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
