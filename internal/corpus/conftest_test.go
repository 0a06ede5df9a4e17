package corpus

import (
	"os"
	"testing"

	"github.com/kailas-cloud/cityrag/internal/index/flat"
)

func writeIndex(t *testing.T, idx *flat.Index, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := idx.Write(f); err != nil {
		t.Fatalf("write index: %v", err)
	}
}
