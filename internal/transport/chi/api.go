package chi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

// ErrorResponseCode is the machine-readable error code returned to clients.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest              ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed        ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized            ErrorResponseCode = "unauthorized"
	ErrorResponseCodeGenerationQuotaExceeded ErrorResponseCode = "generation_quota_exceeded"
	ErrorResponseCodeRateLimited             ErrorResponseCode = "rate_limited"
	ErrorResponseCodeEmbeddingProviderError  ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeRerankerError           ErrorResponseCode = "reranker_error"
	ErrorResponseCodeUpstreamUnavailable     ErrorResponseCode = "upstream_unavailable"
	ErrorResponseCodeInternalError           ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RAGQueryRequest is the POST /rag/query body.
type RAGQueryRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

// RAGQueryResponse is the grounded answer with the snippets it was grounded on.
type RAGQueryResponse struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Snippets []snippet.Snippet `json:"snippets"`
}

// GetRAGQueryParams are the GET /rag/query query parameters.
type GetRAGQueryParams struct {
	Question string `form:"question" json:"question"`
	TopK     *int   `form:"top_k,omitempty" json:"top_k,omitempty"`
}

// GetUsageParams are the GET /usage query parameters.
type GetUsageParams struct {
	Period *string `form:"period,omitempty" json:"period,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status     string            `json:"status"`
	Checks     map[string]string `json:"checks"`
	CorpusSize int               `json:"corpus_size"`
}

// UsageResponse is the GET /usage body.
type UsageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider,omitempty"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         UsageMetrics `json:"usage"`
	Budget        BudgetStatus `json:"budget"`
}

// UsageMetrics holds consumed generation tokens.
type UsageMetrics struct {
	GenerationTokens int64 `json:"generation_tokens"`
}

// BudgetStatus is the generation budget snapshot.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// ServerInterface is implemented by the HTTP handlers.
type ServerInterface interface {
	// (POST /rag/query)
	PostRAGQuery(w http.ResponseWriter, r *http.Request)
	// (GET /rag/query)
	GetRAGQuery(w http.ResponseWriter, r *http.Request, params GetRAGQueryParams)
	// (GET /usage)
	GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError reports a query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// serverInterfaceWrapper binds parameters and dispatches to ServerInterface.
type serverInterfaceWrapper struct {
	handler          ServerInterface
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) getRAGQuery(w http.ResponseWriter, r *http.Request) {
	var params GetRAGQueryParams

	if err := runtime.BindQueryParameter("form", true, true, "question", r.URL.Query(), &params.Question); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "question", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &params.TopK); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "top_k", Err: err})
		return
	}

	siw.handler.GetRAGQuery(w, r, params)
}

func (siw *serverInterfaceWrapper) getUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams

	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &params.Period); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "period", Err: err})
		return
	}

	siw.handler.GetUsage(w, r, params)
}

// ChiServerOptions configures route registration.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions registers si's routes on options.BaseRouter (a new router if nil).
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := &serverInterfaceWrapper{
		handler:          si,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Post("/rag/query", si.PostRAGQuery)
	r.Get("/rag/query", wrapper.getRAGQuery)
	r.Get("/usage", wrapper.getUsage)
	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)

	return r
}
