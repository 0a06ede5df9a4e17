package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/config"
	"github.com/kailas-cloud/cityrag/internal/corpus"
	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/cityrag/internal/db/redis"
	"github.com/kailas-cloud/cityrag/internal/domain"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/metrics"
	budgetrepo "github.com/kailas-cloud/cityrag/internal/repository/budget"
	"github.com/kailas-cloud/cityrag/internal/repository/embcache"
	"github.com/kailas-cloud/cityrag/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/cityrag/internal/transport/openai"
	"github.com/kailas-cloud/cityrag/internal/transport/rerank"
	budgetuc "github.com/kailas-cloud/cityrag/internal/usecase/budget"
	embeddinguc "github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cityrag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/cityrag/internal/usecase/pipeline"
	usageuc "github.com/kailas-cloud/cityrag/internal/usecase/usage"
	"github.com/kailas-cloud/cityrag/internal/version"
	"github.com/kailas-cloud/cityrag/internal/workerpool"
)

const probeText = "Kadıköy"

// app is the composition root shared by serve and ask.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	corpus   *corpus.Corpus
	store    db.Store
	pipeline *pipelineuc.Service
	usage    *usageuc.Service
	health   *healthuc.Service
}

// loadConfig reads the explicit path if given, otherwise config/<env>.yaml.
func loadConfig(env, path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(env)
}

// newApp builds every long-lived component. Start-up failures after the logger
// exists are fatal.
func newApp(ctx context.Context, configPath string) (*app, error) {
	env := config.GetEnv()

	cfg, err := loadConfig(env, configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting cityrag",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	c, err := corpus.Load(ctx, cfg.Corpus.MetadataPath, cfg.Corpus.IndexPath)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded", zap.Int("snippets", c.Len()), zap.Int("dim", c.Dim()))

	store, err := openStore(ctx, &cfg)
	if err != nil {
		logger.Fatal("Failed to open cache store", zap.Error(err))
	}

	embedder := buildEmbedder(&cfg, store, logger)
	if err := probeEmbedder(ctx, embedder, c.Dim()); err != nil {
		logger.Fatal("Embedder probe failed", zap.Error(err))
	}

	reranker := rerank.New(&rerank.Config{
		BaseURL:   cfg.Reranker.BaseURL,
		APIKey:    cfg.Reranker.APIKey,
		RawScores: cfg.Reranker.RawScores,
		Timeout:   time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		Logger:    logger,
	})
	if err := reranker.HealthCheck(ctx); err != nil {
		logger.Fatal("Reranker not ready", zap.String("base_url", cfg.Reranker.BaseURL), zap.Error(err))
	}

	generator := gemini.New(&gemini.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Timeout:     time.Duration(cfg.Generator.TimeoutSec) * time.Second,
		MaxRetries:  *cfg.Generator.MaxRetries,
		BackoffBase: time.Duration(cfg.Generator.BackoffMs) * time.Millisecond,
		Logger:      logger,
	})

	budget := buildBudget(ctx, &cfg, store, logger)

	pool := workerpool.New(cfg.Workers.Concurrency, time.Duration(cfg.Workers.QueueTimeoutSec)*time.Second)
	pipe := pipelineuc.New(embedder, c, reranker, generator, pipelineuc.Options{
		SearchK:      cfg.Retrieval.SearchK,
		MaxPerMetric: cfg.Retrieval.MaxPerMetric,
		Threshold:    *cfg.Retrieval.Threshold,
	}).WithPool(pool).WithBudget(budget)

	logger.Info("Pipeline ready",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generator_model", generator.Model()),
		zap.Int("workers", pool.Size()),
		zap.Int("search_k", pipe.Options().SearchK),
		zap.Float64("threshold", pipe.Options().Threshold),
	)

	health := healthuc.New(c.Len()).
		WithComponent("embedding", embeddingHealthChecker{embedder}).
		WithComponent("reranker", reranker)
	if persistent(cfg.Cache.Driver) {
		health = health.WithDatabase(store)
	}
	if cfg.Generator.HealthCheck {
		health = health.WithComponent("generator", generator)
	}

	return &app{
		env:      env,
		cfg:      cfg,
		logger:   logger,
		corpus:   c,
		store:    store,
		pipeline: pipe,
		usage:    usageuc.New(budget),
		health:   health,
	}, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func persistent(driver string) bool {
	return driver == config.CacheRedis || driver == config.CacheValkey
}

// openStore returns the embedding cache backend, or nil for the "none" driver.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	switch cfg.Cache.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		s, err := memory.NewStore(cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("memory store: %w", err)
		}
		return s, nil
	case config.CacheRedis, config.CacheValkey:
		// valkey speaks the redis protocol; both go through rueidis
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Cache.Driver, err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := s.WaitForReady(ctx, timeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Cache.Driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(cfg *config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		embedder = embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}
	return embedder
}

// probeEmbedder embeds a fixed text and checks the vector width against the index.
func probeEmbedder(ctx context.Context, e domain.Embedder, dim int) error {
	res, err := e.Embed(ctx, probeText)
	if err != nil {
		return err
	}
	if len(res.Embedding) != dim {
		return fmt.Errorf("%w: embedder returns %d, index holds %d",
			domain.ErrVectorDimMismatch, len(res.Embedding), dim)
	}
	return nil
}

// buildBudget creates the generation token tracker, persisted when the cache is shared.
func buildBudget(ctx context.Context, cfg *config.Config, store db.Store, logger *zap.Logger) *budgetuc.Tracker {
	b := cfg.Generator.Budget
	action := budgetuc.ActionWarn
	if b.Action == string(budgetuc.ActionReject) {
		action = budgetuc.ActionReject
	}
	tracker := budgetuc.NewTracker(cfg.Generator.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger)
	if store != nil && persistent(cfg.Cache.Driver) {
		tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	}
	return tracker
}

// embeddingHealthChecker adapts domain.Embedder to health.ComponentChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
