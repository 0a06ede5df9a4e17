// Package rerank is a client for cross-encoder services exposing the TEI /rerank contract.
package rerank

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Config holds the reranker service settings.
type Config struct {
	BaseURL   string
	APIKey    string
	RawScores bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Client scores (query, text) pairs with a cross-encoder. Safe for concurrent use.
type Client struct {
	http      *resty.Client
	rawScores bool
	logger    *zap.Logger
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rankedText struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// New creates a reranker client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: httpClient, rawScores: cfg.RawScores, logger: logger}
}

// Score returns one relevance score per text, in input order.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	var ranked []rankedText
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rerankRequest{Query: query, Texts: texts, RawScores: c.rawScores, Truncate: true}).
		SetResult(&ranked).
		ForceContentType("application/json").
		Post("/rerank")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RerankerRequestsTotal.WithLabelValues("canceled").Inc()
			return nil, fmt.Errorf("rerank request: %w", ctxErr)
		}
		metrics.RerankerRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Reranker call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankerError, err)
	}
	if resp.IsError() {
		metrics.RerankerRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Reranker returned error status",
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", truncate(resp.Body(), 512)),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrRerankerError, resp.StatusCode())
	}

	scores, err := scoresInInputOrder(ranked, len(texts))
	if err != nil {
		metrics.RerankerRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RerankerRequestsTotal.WithLabelValues("ok").Inc()
	return scores, nil
}

// HealthCheck probes the service's /health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("reranker health: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: health status %d", domain.ErrRerankerError, resp.StatusCode())
	}
	return nil
}

func scoresInInputOrder(ranked []rankedText, n int) ([]float64, error) {
	if len(ranked) != n {
		return nil, fmt.Errorf("%w: got %d scores for %d texts", domain.ErrRerankerError, len(ranked), n)
	}
	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			return nil, fmt.Errorf("%w: bad index %d in response", domain.ErrRerankerError, r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	return scores, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
