package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline stages, used as the "stage" label.
const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageRerank   = "rerank"
	StageGenerate = "generate"
)

// RAG pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs by outcome",
		},
		[]string{"outcome"}, // "ok" / "fallback" / "degraded" / "error"
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cityrag",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	PipelineSnippetsSelected = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cityrag",
			Name:      "pipeline_snippets_selected",
			Help:      "Number of snippets sent to the generative model",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 10, 15, 20, 30, 50},
		},
	)

	RerankerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "reranker_requests_total",
			Help:      "Total reranker requests",
		},
		[]string{"status"},
	)

	GeneratorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "generator_requests_total",
			Help:      "Total generative model attempts",
		},
		[]string{"model", "status"},
	)

	GeneratorTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "generator_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"model"},
	)

	GenerationBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cityrag",
			Name:      "generation_budget_tokens_remaining",
			Help:      "Remaining generation token budget",
		},
		[]string{"provider", "period"},
	)

	WorkerPoolInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cityrag",
			Name:      "worker_pool_in_flight",
			Help:      "Compute tasks currently holding a worker slot",
		},
	)

	WorkerPoolRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "worker_pool_rejected_total",
			Help:      "Tasks rejected because no worker slot freed up in time",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline, model client and worker pool metrics.
// Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		PipelineRunsTotal,
		PipelineStageDuration,
		PipelineSnippetsSelected,
		RerankerRequestsTotal,
		GeneratorRequestsTotal,
		GeneratorTokensTotal,
		GenerationBudgetTokensRemaining,
		WorkerPoolInFlight,
		WorkerPoolRejectedTotal,
	)
	pipelineMetricsRegistered = true
}
