// Package pipeline answers questions by retrieval, reranking, diversification and
// grounded generation.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// Retrieval defaults. The threshold is calibrated for sigmoid scores of
// cross-encoder/ms-marco-MiniLM-L-6-v2 and must be re-tuned with the reranker.
const (
	DefaultSearchK      = 30
	DefaultMaxPerMetric = 2
	DefaultThreshold    = 0.3
)

// Options tunes retrieval and selection.
type Options struct {
	SearchK      int
	MaxPerMetric int
	Threshold    float64
}

// DefaultOptions returns the production retrieval settings.
func DefaultOptions() Options {
	return Options{
		SearchK:      DefaultSearchK,
		MaxPerMetric: DefaultMaxPerMetric,
		Threshold:    DefaultThreshold,
	}
}

// Service runs the question-answering pipeline. Stateless across calls; safe for
// concurrent use when its collaborators are.
type Service struct {
	embed  Embedder
	search Searcher
	rerank Reranker
	gen    Generator
	pool   Pool
	budget Budget
	opts   Options
}

// New creates a pipeline service. Non-positive SearchK and MaxPerMetric fall back to defaults.
func New(embed Embedder, search Searcher, rerank Reranker, gen Generator, opts Options) *Service {
	if opts.SearchK <= 0 {
		opts.SearchK = DefaultSearchK
	}
	if opts.MaxPerMetric <= 0 {
		opts.MaxPerMetric = DefaultMaxPerMetric
	}
	return &Service{embed: embed, search: search, rerank: rerank, gen: gen, opts: opts}
}

// WithPool runs embedding, search and reranking through p.
func (s *Service) WithPool(p Pool) *Service {
	s.pool = p
	return s
}

// WithBudget gates generation on b and records generation tokens into it.
func (s *Service) WithBudget(b Budget) *Service {
	s.budget = b
	return s
}

// Options returns the effective retrieval settings.
func (s *Service) Options() Options { return s.opts }

// Run answers q. Snippets in the result are the diversified grounding set, without scores.
func (s *Service) Run(ctx context.Context, q query.Query) (answer.Result, error) {
	res, err := s.run(ctx, q)
	switch {
	case err != nil:
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
	case res.Degraded:
		metrics.PipelineRunsTotal.WithLabelValues("degraded").Inc()
	case res.Fallback:
		metrics.PipelineRunsTotal.WithLabelValues("fallback").Inc()
	default:
		metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	}
	return res, err
}

func (s *Service) run(ctx context.Context, q query.Query) (answer.Result, error) {
	if s.budget != nil {
		if err := s.budget.Check(ctx); err != nil {
			return answer.Result{}, fmt.Errorf("generation budget: %w", err)
		}
	}

	ranked, err := s.retrieve(ctx, q.Question())
	if err != nil {
		return answer.Result{}, err
	}

	selectFrom := aboveThreshold(ranked, s.opts.Threshold)
	passed := len(selectFrom)
	fallback := passed == 0
	if fallback {
		selectFrom = ranked
	}
	selected := Diversify(selectFrom, q.TopK(), s.opts.MaxPerMetric)
	metrics.PipelineSnippetsSelected.Observe(float64(len(selected)))

	prompt := BuildPrompt(q.Question(), selected)

	start := time.Now()
	gen, err := s.gen.Generate(ctx, prompt)
	observeStage(metrics.StageGenerate, start)
	if err != nil {
		return answer.Result{}, fmt.Errorf("generate: %w", err)
	}

	domain.UsageFromContext(ctx).AddGenerationTokens(gen.TotalTokens)
	if s.budget != nil {
		s.budget.Record(int64(gen.TotalTokens))
	}

	text := gen.Text
	if !gen.OK {
		text = DegradedAnswerPrefix + gen.Raw
	}

	logger.FromContext(ctx).Debug("Pipeline run completed",
		zap.Int("candidates", len(ranked)),
		zap.Int("above_threshold", passed),
		zap.Int("selected", len(selected)),
		zap.Bool("fallback", fallback),
		zap.Bool("degraded", !gen.OK),
		zap.Int("generation_tokens", gen.TotalTokens),
	)

	return answer.Result{
		Question: q.Question(),
		Answer:   text,
		Snippets: selected,
		Fallback: fallback,
		Degraded: !gen.OK,
	}, nil
}

// retrieve embeds the question, searches the corpus and reranks the hits.
// The result is sorted by descending score; ties keep search order.
func (s *Service) retrieve(ctx context.Context, question string) ([]candidate.Candidate, error) {
	var ranked []candidate.Candidate
	err := s.do(ctx, func(ctx context.Context) error {
		start := time.Now()
		emb, err := s.embed.Embed(ctx, question)
		observeStage(metrics.StageEmbed, start)
		if err != nil {
			return fmt.Errorf("embed question: %w", err)
		}

		start = time.Now()
		ranked, err = s.search.Search(ctx, emb.Embedding, s.opts.SearchK)
		observeStage(metrics.StageSearch, start)
		if err != nil {
			return fmt.Errorf("search corpus: %w", err)
		}
		if len(ranked) == 0 {
			return nil
		}

		texts := make([]string, len(ranked))
		for i := range ranked {
			texts[i] = ranked[i].Snippet.Text
		}

		start = time.Now()
		scores, err := s.rerank.Score(ctx, question, texts)
		observeStage(metrics.StageRerank, start)
		if err != nil {
			return fmt.Errorf("rerank: %w", err)
		}
		if len(scores) != len(ranked) {
			return fmt.Errorf("%w: got %d scores for %d candidates",
				domain.ErrRerankerError, len(scores), len(ranked))
		}
		for i := range ranked {
			ranked[i].Score = scores[i]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

func (s *Service) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return s.pool.Do(ctx, fn) //nolint:wrapcheck // fn errors are already wrapped
}

// aboveThreshold keeps candidates scoring at or above threshold, preserving order.
func aboveThreshold(ranked []candidate.Candidate, threshold float64) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(ranked))
	for i := range ranked {
		if ranked[i].Score >= threshold {
			out = append(out, ranked[i])
		}
	}
	return out
}

func observeStage(stage string, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
