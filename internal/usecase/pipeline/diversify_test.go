package pipeline

import (
	"math/rand"
	"slices"
	"strconv"
	"testing"

	"github.com/kailas-cloud/cityrag/internal/domain/candidate"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

func TestDiversify_CapsPerMetric(t *testing.T) {
	in := scored(
		snip("g1", "green_area"), 0.9,
		snip("h1", "housing"), 0.8,
		snip("g2", "green_area"), 0.7,
	)
	got := ids(Diversify(in, 3, 1))
	want := []string{"g1", "h1"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversify_FirstSeenGroupOrder(t *testing.T) {
	// g2 (0.7) stays ahead of h1 (0.8) because green_area was seen first.
	in := scored(
		snip("g1", "green_area"), 0.9,
		snip("h1", "housing"), 0.8,
		snip("g2", "green_area"), 0.7,
		snip("h2", "housing"), 0.6,
	)
	got := ids(Diversify(in, 10, 2))
	want := []string{"g1", "g2", "h1", "h2"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversify_TruncatesToTopK(t *testing.T) {
	in := scored(
		snip("a1", "a"), 0.9,
		snip("a2", "a"), 0.8,
		snip("b1", "b"), 0.7,
		snip("c1", "c"), 0.6,
	)
	got := ids(Diversify(in, 3, 2))
	want := []string{"a1", "a2", "b1"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversify_NilMetricSharesGroup(t *testing.T) {
	noMetric := func(id string) snippet.Snippet { return snippet.Snippet{ID: id, Text: id} }
	in := scored(
		noMetric("n1"), 0.9,
		snip("a1", "a"), 0.8,
		noMetric("n2"), 0.7,
		noMetric("n3"), 0.6,
	)
	got := ids(Diversify(in, 10, 2))
	want := []string{"n1", "n2", "a1"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversify_EmptyMetricSeparateFromMissing(t *testing.T) {
	noMetric := snippet.Snippet{ID: "n1", Text: "n1"}
	in := scored(
		noMetric, 0.9,
		snip("e1", ""), 0.8,
		snip("e2", ""), 0.7,
	)
	got := ids(Diversify(in, 10, 1))
	want := []string{"n1", "e1"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiversify_EmptyAndNonPositive(t *testing.T) {
	in := scored(snip("a1", "a"), 0.9)
	tests := []struct {
		name         string
		in           []candidate.Candidate
		topK, perKey int
	}{
		{"empty input", nil, 5, 2},
		{"zero top_k", in, 0, 2},
		{"zero max per metric", in, 5, 0},
		{"negative top_k", in, -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diversify(tt.in, tt.topK, tt.perKey)
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %v", got)
			}
		})
	}
}

func TestDiversify_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{"green_area", "housing", "population", "schools", ""}

	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(40)
		in := make([]candidate.Candidate, n)
		for i := range in {
			s := snippet.Snippet{ID: strconv.Itoa(i), Text: strconv.Itoa(i)}
			s.MetricKey = snippet.String(keys[rng.Intn(len(keys))])
			in[i] = candidate.Candidate{Snippet: s, Score: 1 - float64(i)/100}
		}
		topK := 1 + rng.Intn(15)
		perKey := 1 + rng.Intn(4)

		out := Diversify(in, topK, perKey)
		if len(out) > topK {
			t.Fatalf("iter %d: %d snippets exceed top_k %d", iter, len(out), topK)
		}
		if n > 0 && len(out) == 0 {
			t.Fatalf("iter %d: empty output for non-empty input", iter)
		}
		counts := map[snippet.Group]int{}
		for i := range out {
			g := out[i].Group()
			counts[g]++
			if counts[g] > perKey {
				t.Fatalf("iter %d: group %+v exceeds cap %d", iter, g, perKey)
			}
		}
	}
}
