package cityrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/corpus"
	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	budgetuc "github.com/kailas-cloud/cityrag/internal/usecase/budget"
	embeddinguc "github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cityrag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/cityrag/internal/usecase/pipeline"
	usageuc "github.com/kailas-cloud/cityrag/internal/usecase/usage"
	"github.com/kailas-cloud/cityrag/internal/workerpool"
)

const defaultGeminiRetries = 2

// Internal interfaces, swapped for fakes in tests.
type askUseCase interface {
	Run(ctx context.Context, q query.Query) (answer.Result, error)
}

// Client is the cityrag SDK entry point. Safe for concurrent use.
type Client struct {
	corpusSize int
	askSvc     askUseCase
	healthSvc  healthUseCase
	usageSvc   usageUseCase
	obs        *observer
}

// New loads the corpus and wires the pipeline. The context bounds corpus loading.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c, err := corpus.Load(ctx, cfg.metadataPath, cfg.indexPath)
	if err != nil {
		return nil, fmt.Errorf("cityrag: load corpus: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(c, cfg, obs), nil
}

func (cfg *clientConfig) validate() error {
	switch {
	case cfg.metadataPath == "" || cfg.indexPath == "":
		return errors.New("cityrag: corpus paths required (use WithCorpus)")
	case cfg.embedder == nil:
		return errors.New("cityrag: embedder required (use WithEmbedder or WithOpenAIEmbedder)")
	case cfg.reranker == nil:
		return errors.New("cityrag: reranker required (use WithReranker or WithRerankerURL)")
	case cfg.generator == nil:
		return errors.New("cityrag: generator required (use WithGenerator or WithGemini)")
	}
	return nil
}

// searcher is the corpus surface the client needs.
type searcher interface {
	pipelineuc.Searcher
	Len() int
}

func wireClient(c searcher, cfg *clientConfig, obs *observer) *Client {
	opts := pipelineuc.Options{
		SearchK:      cfg.searchK,
		MaxPerMetric: cfg.maxPerMetric,
		Threshold:    pipelineuc.DefaultThreshold,
	}
	if cfg.threshold != nil {
		opts.Threshold = *cfg.threshold
	}

	budget := budgetuc.NewTracker("sdk", cfg.dailyTokens, cfg.monthlyTokens, budgetuc.ActionReject, zap.NewNop())

	// SDK callers wait for a worker until their own context ends.
	pool := workerpool.New(cfg.concurrency, 0)

	embedder := embeddinguc.NewInstrumentedEmbedder(cfg.embedder, "sdk", "", zap.NewNop())
	pipe := pipelineuc.New(embedder, c, cfg.reranker, cfg.generator, opts).
		WithPool(pool).
		WithBudget(budget)

	health := healthuc.New(c.Len()).
		WithComponent("embedding", embedder).
		WithComponent("reranker", checkerOf(cfg.reranker))

	return &Client{
		corpusSize: c.Len(),
		askSvc:     pipe,
		healthSvc:  health,
		usageSvc:   usageuc.New(budget),
		obs:        obs,
	}
}

// CorpusSize returns the number of loaded snippets.
func (c *Client) CorpusSize() int { return c.corpusSize }

// Ask answers a question grounded on at most topK snippets. topK=0 selects the default (7).
// An answer whose generation failed still returns without error, carrying a diagnostic text.
func (c *Client) Ask(ctx context.Context, question string, topK int) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	q, err := query.New(question, topK)
	if err != nil {
		return Answer{}, err
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, err := c.askSvc.Run(ctx, q)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	ans = answerFromDomain(&res)
	ans.EmbeddingTokens = usage.EmbeddingTokens
	ans.GenerationTokens = usage.GenerationTokens
	c.obs.tokens(ans.EmbeddingTokens, ans.GenerationTokens)
	return ans, nil
}
