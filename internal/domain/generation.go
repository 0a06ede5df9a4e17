package domain

import "context"

// Generator produces an answer from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// GenerationResult is the outcome of a generation call that reached the model service.
// OK is false when the service answered without usable text; Raw then holds the body.
type GenerationResult struct {
	Text        string
	OK          bool
	Raw         string
	TotalTokens int
}
