package cityrag

import (
	"maps"

	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

// Answer is a grounded reply with the snippets it was grounded on.
type Answer struct {
	Question         string
	Text             string
	Snippets         []Snippet
	EmbeddingTokens  int
	GenerationTokens int
}

// Snippet is one corpus record. Nil fields are missing in the source data.
type Snippet struct {
	ID           string
	Text         string
	DocType      *string
	DistrictName *string
	MetricKey    *string
	DistrictID   *int64
	Value        *float64
	Unit         *string
	Year         *int64
	// Extra holds metadata columns beyond the fields above, keyed by column name.
	Extra map[string]any
}

func answerFromDomain(res *answer.Result) Answer {
	snippets := make([]Snippet, len(res.Snippets))
	for i := range res.Snippets {
		snippets[i] = snippetFromDomain(&res.Snippets[i])
	}
	return Answer{
		Question: res.Question,
		Text:     res.Answer,
		Snippets: snippets,
	}
}

func snippetFromDomain(s *snippet.Snippet) Snippet {
	return Snippet{
		ID:           s.ID,
		Text:         s.Text,
		DocType:      s.DocType,
		DistrictName: s.DistrictName,
		MetricKey:    s.MetricKey,
		DistrictID:   s.DistrictID,
		Value:        s.Value,
		Unit:         s.Unit,
		Year:         s.Year,
		Extra:        maps.Clone(s.Extra),
	}
}
