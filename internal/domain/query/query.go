// Package query holds the validated pipeline input.
package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// Query parameter limits.
const (
	// MaxQuestionLength is the maximum allowed question length in runes.
	MaxQuestionLength = 2000
	DefaultTopK       = 7
	MaxTopK           = 50
)

// Query is a validated question with the number of snippets to ground on.
type Query struct {
	question string
	topK     int
}

// New validates and normalizes query parameters. topK=0 selects DefaultTopK.
func New(question string, topK int) (Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Query{}, fmt.Errorf("%w: question is required", domain.ErrInvalidQuery)
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return Query{}, fmt.Errorf("%w: question too long (max %d chars)", domain.ErrInvalidQuery, MaxQuestionLength)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 || topK > MaxTopK {
		return Query{}, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidQuery, MaxTopK)
	}
	return Query{question: question, topK: topK}, nil
}

// Question returns the trimmed question text.
func (q Query) Question() string { return q.question }

// TopK returns the maximum number of snippets to select.
func (q Query) TopK() int { return q.topK }
