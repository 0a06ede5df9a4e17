package chi

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
)

// Pipeline answers validated questions.
type Pipeline interface {
	Run(ctx context.Context, q query.Query) (answer.Result, error)
}
