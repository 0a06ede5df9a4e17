package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed question or top_k.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrCorpusMisaligned signals that metadata rows and index vectors disagree.
	ErrCorpusMisaligned = errors.New("corpus metadata and index are misaligned")
	// ErrIndexFormat signals an unreadable or unsupported vector index file.
	ErrIndexFormat = errors.New("unsupported vector index format")

	// ErrRateLimited signals that the compute pool could not admit the request in time.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankerError signals a reranker failure.
	ErrRerankerError = errors.New("reranker error")
	// ErrUpstreamUnavailable signals that the generative service could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrGenerationQuotaExceeded signals an exhausted generation token budget.
	ErrGenerationQuotaExceeded = errors.New("generation quota exceeded")
)

// UpstreamError wraps ErrUpstreamUnavailable with the number of attempts made.
type UpstreamError struct {
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrUpstreamUnavailable.Error(), e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstreamUnavailable, e.Err} }

// NewUpstreamError creates an upstream error.
func NewUpstreamError(attempts int, err error) error {
	return &UpstreamError{Attempts: attempts, Err: err}
}
