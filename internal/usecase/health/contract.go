package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ComponentChecker checks availability of an external model service
// (embedding provider, reranker, generative model).
type ComponentChecker interface {
	HealthCheck(ctx context.Context) error
}
