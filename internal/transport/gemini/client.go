// Package gemini calls the Gemini generateContent REST endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// Defaults for zero-valued Config fields.
const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel       = "gemini-2.5-flash"
	DefaultTimeout     = 30 * time.Second
	DefaultBackoffBase = 500 * time.Millisecond
)

const (
	answerPath = "candidates.0.content.parts.0.text"
	tokensPath = "usageMetadata.totalTokenCount"
)

// Config holds the generative model settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration // per attempt
	MaxRetries  int
	BackoffBase time.Duration
	Logger      *zap.Logger
}

// Client is a Gemini REST client. Safe for concurrent use.
type Client struct {
	http        *resty.Client
	apiKey      string
	model       string
	timeout     time.Duration
	maxRetries  uint64
	backoffBase time.Duration
	logger      *zap.Logger
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// New creates a Gemini client.
func New(cfg *Config) *Client {
	c := &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		backoffBase: cfg.BackoffBase,
		logger:      cfg.Logger,
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = uint64(cfg.MaxRetries)
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.backoffBase <= 0 {
		c.backoffBase = DefaultBackoffBase
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c.http = resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate implements domain.Generator. It sends prompt as a single user turn.
// Network failures and timeouts that outlast the retries yield a domain.UpstreamError.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	body := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))

	var (
		attempts int
		last     *resty.Response
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		last = nil

		resp, err := c.attempt(ctx, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "network_error").Inc()
			c.logger.Warn("Generation attempt failed",
				zap.String("model", c.model),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}

		last = resp
		if retryableStatus(resp.StatusCode()) {
			metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "retryable_status").Inc()
			c.logger.Warn("Generation attempt returned retryable status",
				zap.String("model", c.model),
				zap.Int("attempt", attempts),
				zap.Int("status", resp.StatusCode()),
			)
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode()))
		}
		return nil
	})

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "canceled").Inc()
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", ctxErr)
	}
	if last == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return domain.GenerationResult{}, domain.NewUpstreamError(attempts, err)
	}

	return c.parse(last), nil
}

func (c *Client) attempt(ctx context.Context, body generateRequest) (*resty.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(attemptCtx).
		SetQueryParam("key", c.apiKey).
		SetPathParam("model", c.model).
		SetBody(body).
		Post("/models/{model}:generateContent")
	if err != nil {
		return nil, redact(err)
	}
	return resp, nil
}

func (c *Client) parse(resp *resty.Response) domain.GenerationResult {
	raw := string(resp.Body())
	out := domain.GenerationResult{Raw: raw}

	if !resp.IsSuccess() {
		metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "http_error").Inc()
		c.logger.Warn("Generation returned error status",
			zap.String("model", c.model),
			zap.Int("status", resp.StatusCode()),
		)
		return out
	}

	if tokens := gjson.Get(raw, tokensPath); tokens.Exists() {
		out.TotalTokens = int(tokens.Int())
		metrics.GeneratorTokensTotal.WithLabelValues(c.model).Add(float64(out.TotalTokens))
	}

	text := gjson.Get(raw, answerPath)
	if text.Type != gjson.String {
		metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "no_answer").Inc()
		return out
	}

	metrics.GeneratorRequestsTotal.WithLabelValues(c.model, "ok").Inc()
	out.Text = text.String()
	out.OK = true
	return out
}

// HealthCheck fetches the model descriptor.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetPathParam("model", c.model).
		Get("/models/{model}")
	if err != nil {
		return fmt.Errorf("generator health: %w", redact(err))
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: model lookup status %d", domain.ErrUpstreamUnavailable, resp.StatusCode())
	}
	return nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// redact drops the query string from URL errors so the API key never reaches logs.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			uerr.URL = u.String()
		}
	}
	return err
}
