// Package candidate holds the per-request pairing of a snippet with its retrieval and
// relevance scores.
package candidate

import "github.com/kailas-cloud/cityrag/internal/domain/snippet"

// Candidate is a retrieved snippet. Distance comes from the vector index (squared L2,
// lower is closer); Score is set by the reranker (higher is more relevant).
type Candidate struct {
	Snippet  snippet.Snippet
	Distance float32
	Score    float64
}
