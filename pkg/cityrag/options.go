package cityrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/cityrag/internal/transport/openai"
	"github.com/kailas-cloud/cityrag/internal/transport/rerank"
	pipelineuc "github.com/kailas-cloud/cityrag/internal/usecase/pipeline"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	metadataPath string
	indexPath    string

	embedder  domain.Embedder
	reranker  Reranker
	generator pipelineuc.Generator

	searchK      int
	maxPerMetric int
	threshold    *float64
	concurrency  int

	dailyTokens   int64
	monthlyTokens int64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithCorpus sets the parquet metadata and FAISS index paths. Required.
func WithCorpus(metadataPath, indexPath string) Option {
	return optionFunc(func(c *clientConfig) {
		c.metadataPath = metadataPath
		c.indexPath = indexPath
	})
}

// WithEmbedder sets a custom query embedder.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = &embedderAdapter{inner: e}
	})
}

// WithOpenAIEmbedder uses an OpenAI-compatible embeddings endpoint, such as a
// text-embeddings-inference server. apiKey may be empty for local servers.
func WithOpenAIEmbedder(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    model,
			Provider: "openai-compatible",
			Logger:   zap.NewNop(),
		})
	})
}

// WithReranker sets a custom cross-encoder.
func WithReranker(r Reranker) Option {
	return optionFunc(func(c *clientConfig) {
		c.reranker = r
	})
}

// WithRerankerURL uses a text-embeddings-inference /rerank endpoint.
func WithRerankerURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.reranker = rerank.New(&rerank.Config{BaseURL: baseURL, Logger: zap.NewNop()})
	})
}

// WithGenerator sets a custom answer generator.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = &generatorAdapter{inner: g}
	})
}

// WithGemini uses the Gemini generateContent API. An empty model selects the default.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = gemini.New(&gemini.Config{
			APIKey:     apiKey,
			Model:      model,
			MaxRetries: defaultGeminiRetries,
			Logger:     zap.NewNop(),
		})
	})
}

// WithRetrieval tunes candidate selection.
// Defaults: searchK=30, maxPerMetric=2, threshold=0.3.
func WithRetrieval(searchK, maxPerMetric int, threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchK = searchK
		c.maxPerMetric = maxPerMetric
		c.threshold = &threshold
	})
}

// WithConcurrency bounds concurrent embed/search/rerank work.
// Default: runtime.NumCPU().
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithGenerationBudget rejects questions once generation tokens reach a limit.
// Zero means unlimited. Counters live in memory.
func WithGenerationBudget(daily, monthly int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokens = daily
		c.monthlyTokens = monthly
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
