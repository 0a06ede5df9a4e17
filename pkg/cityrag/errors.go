package cityrag

import "github.com/kailas-cloud/cityrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery            = domain.ErrInvalidQuery
	ErrRateLimited             = domain.ErrRateLimited
	ErrGenerationQuotaExceeded = domain.ErrGenerationQuotaExceeded
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrRerankerError           = domain.ErrRerankerError
	ErrUpstreamUnavailable     = domain.ErrUpstreamUnavailable
	ErrVectorDimMismatch       = domain.ErrVectorDimMismatch
	ErrCorpusMisaligned        = domain.ErrCorpusMisaligned
	ErrIndexFormat             = domain.ErrIndexFormat
)
