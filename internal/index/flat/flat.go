// Package flat reads a FAISS IndexFlatL2 file and answers exact nearest-neighbour queries.
//
// On-disk layout (little endian), as written by faiss::write_index:
//
//	fourcc "IxF2"
//	d int32, ntotal int64, dummy int64, dummy int64, is_trained uint8, metric_type int32
//	[metric_arg float32 when metric_type > 1]
//	n uint64 (float count, == d*ntotal), then n float32 values
package flat

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

const (
	fourccL2 = "IxF2"
	fourccIP = "IxFI"

	metricInnerProduct = 0
	metricL2           = 1

	// maxDimension guards against allocating garbage headers.
	maxDimension = 1 << 16
)

// Hit is one search result: the internal id (row position) and its squared L2 distance.
type Hit struct {
	ID       int
	Distance float32
}

// Index is an immutable flat L2 index. Safe for concurrent Search calls.
type Index struct {
	dim     int
	ntotal  int
	vectors []float32 // row-major, ntotal*dim
}

// New builds an index over row-major vectors. Used by tests and tooling.
func New(dim int, vectors []float32) (*Index, error) {
	if dim <= 0 || dim > maxDimension {
		return nil, fmt.Errorf("%w: dimension %d", domain.ErrIndexFormat, dim)
	}
	if len(vectors)%dim != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of dimension %d",
			domain.ErrIndexFormat, len(vectors), dim)
	}
	return &Index{dim: dim, ntotal: len(vectors) / dim, vectors: vectors}, nil
}

// Load reads an index file from disk.
func Load(path string) (*Index, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	idx, err := Read(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return idx, nil
}

type header struct {
	Dim        int32
	NTotal     int64
	Dummy1     int64
	Dummy2     int64
	IsTrained  uint8
	MetricType int32
}

// Read parses a FAISS flat index from r.
func Read(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read fourcc: %w", domain.ErrIndexFormat, err)
	}
	switch string(magic[:]) {
	case fourccL2:
	case fourccIP:
		return nil, fmt.Errorf("%w: inner product index (IxFI) is not supported", domain.ErrIndexFormat)
	default:
		return nil, fmt.Errorf("%w: unexpected fourcc %q", domain.ErrIndexFormat, string(magic[:]))
	}

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrIndexFormat, err)
	}
	if h.MetricType > metricL2 {
		var metricArg float32
		if err := binary.Read(r, binary.LittleEndian, &metricArg); err != nil {
			return nil, fmt.Errorf("%w: read metric arg: %w", domain.ErrIndexFormat, err)
		}
	}
	if h.MetricType != metricL2 {
		return nil, fmt.Errorf("%w: metric type %d, want L2", domain.ErrIndexFormat, h.MetricType)
	}
	if h.Dim <= 0 || h.Dim > maxDimension || h.NTotal < 0 {
		return nil, fmt.Errorf("%w: bad header d=%d ntotal=%d", domain.ErrIndexFormat, h.Dim, h.NTotal)
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: read vector count: %w", domain.ErrIndexFormat, err)
	}
	want := uint64(h.Dim) * uint64(h.NTotal) //nolint:gosec // both checked non-negative above
	if n != want {
		return nil, fmt.Errorf("%w: %d floats stored, header implies %d", domain.ErrIndexFormat, n, want)
	}

	buf := make([]byte, n*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %w", domain.ErrIndexFormat, err)
	}
	vectors := make([]float32, n)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	return &Index{dim: int(h.Dim), ntotal: int(h.NTotal), vectors: vectors}, nil
}

// Write serializes the index in the FAISS IndexFlatL2 layout.
func (x *Index) Write(w io.Writer) error {
	if _, err := io.WriteString(w, fourccL2); err != nil {
		return fmt.Errorf("write fourcc: %w", err)
	}
	h := header{
		Dim:        int32(x.dim),    //nolint:gosec // bounded by maxDimension
		NTotal:     int64(x.ntotal), //nolint:gosec
		Dummy1:     1 << 20,
		Dummy2:     1 << 20,
		IsTrained:  1,
		MetricType: metricL2,
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(x.vectors))); err != nil {
		return fmt.Errorf("write vector count: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, x.vectors); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int { return x.ntotal }

// Search returns the min(k, Len()) nearest vectors by squared L2 distance, ascending.
// Equal distances are ordered by ascending id, so results are deterministic.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrVectorDimMismatch, len(query), x.dim)
	}
	if k <= 0 || x.ntotal == 0 {
		return nil, nil
	}
	if k > x.ntotal {
		k = x.ntotal
	}

	h := make(maxHeap, 0, k)
	for id := 0; id < x.ntotal; id++ {
		d := x.distance(query, id)
		if len(h) < k {
			heap.Push(&h, Hit{ID: id, Distance: d})
			continue
		}
		if less(Hit{ID: id, Distance: d}, h[0]) {
			h[0] = Hit{ID: id, Distance: d}
			heap.Fix(&h, 0)
		}
	}

	out := make([]Hit, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Hit) //nolint:forcetypeassert // heap only holds Hit
	}
	return out, nil
}

func (x *Index) distance(q []float32, id int) float32 {
	row := x.vectors[id*x.dim : (id+1)*x.dim]
	var sum float32
	for i, v := range row {
		diff := q[i] - v
		sum += diff * diff
	}
	return sum
}

// less orders hits by distance, then id.
func less(a, b Hit) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// maxHeap keeps the worst of the current top-k at the root.
type maxHeap []Hit

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(Hit)) } //nolint:forcetypeassert // heap only holds Hit

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ErrEmptyIndex is returned by Validate for an index with no vectors.
var ErrEmptyIndex = errors.New("index is empty")

// Validate reports structural problems that make the index unusable for serving.
func (x *Index) Validate() error {
	if x.ntotal == 0 {
		return ErrEmptyIndex
	}
	return nil
}
