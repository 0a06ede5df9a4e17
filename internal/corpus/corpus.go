// Package corpus owns the snippet metadata and the vector index built over it.
// Row i of the metadata describes vector i of the index.
package corpus

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
	"github.com/kailas-cloud/cityrag/internal/index/flat"
)

// Corpus is read-only after construction and safe for concurrent use.
type Corpus struct {
	snippets []snippet.Snippet
	index    *flat.Index
}

// New pairs snippets with a non-empty index. Counts must match.
func New(snippets []snippet.Snippet, index *flat.Index) (*Corpus, error) {
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("validate index: %w", err)
	}
	if len(snippets) != index.Len() {
		return nil, fmt.Errorf("%w: %d metadata rows, %d vectors",
			domain.ErrCorpusMisaligned, len(snippets), index.Len())
	}
	return &Corpus{snippets: snippets, index: index}, nil
}

// Load reads the parquet metadata and the FAISS index and checks their alignment.
func Load(ctx context.Context, metadataPath, indexPath string) (*Corpus, error) {
	idx, err := flat.Load(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	snippets, err := ReadMetadata(ctx, metadataPath)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return New(snippets, idx)
}

// Len returns the number of snippets.
func (c *Corpus) Len() int { return len(c.snippets) }

// Dim returns the index vector dimension.
func (c *Corpus) Dim() int { return c.index.Dim() }

// Snippet returns the snippet at position id.
func (c *Corpus) Snippet(id int) (snippet.Snippet, bool) {
	if id < 0 || id >= len(c.snippets) {
		return snippet.Snippet{}, false
	}
	return c.snippets[id], true
}

// Search returns the k nearest snippets to vec, closest first.
func (c *Corpus) Search(_ context.Context, vec []float32, k int) ([]candidate.Candidate, error) {
	hits, err := c.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	out := make([]candidate.Candidate, 0, len(hits))
	for _, h := range hits {
		s, ok := c.Snippet(h.ID)
		if !ok {
			// unreachable while New holds the alignment invariant
			return nil, fmt.Errorf("%w: index id %d out of range", domain.ErrCorpusMisaligned, h.ID)
		}
		out = append(out, candidate.Candidate{Snippet: s, Distance: h.Distance})
	}
	return out, nil
}
