// Package answer holds the pipeline output.
package answer

import "github.com/kailas-cloud/cityrag/internal/domain/snippet"

// Result is the grounded answer together with the snippets it was grounded on.
// Snippets carry no relevance score.
type Result struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Snippets []snippet.Snippet `json:"snippets"`

	// Fallback is true when no candidate cleared the relevance threshold.
	Fallback bool `json:"-"`
	// Degraded is true when the generative response had no usable answer.
	Degraded bool `json:"-"`
}
