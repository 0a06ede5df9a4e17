package corpus

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
	"github.com/kailas-cloud/cityrag/internal/index/flat"
)

// metadataRow mirrors what pandas writes: nullable ints end up as float64 with NaN.
type metadataRow struct {
	ID           string  `parquet:"id"`
	Text         string  `parquet:"text"`
	DocType      *string `parquet:"doc_type"`
	DistrictName *string `parquet:"district_name"`
	MetricKey    *string `parquet:"metric_key"`
	DistrictID   float64 `parquet:"district_id"`
	Value        float64 `parquet:"value"`
	Unit         *string `parquet:"unit"`
	Year         *int64  `parquet:"year"`
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

func writeMetadata(t *testing.T, rows []metadataRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rag_knowledge_metadata.parquet")
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	return path
}

func sampleRows() []metadataRow {
	return []metadataRow{
		{
			ID: "kadikoy-green", Text: "Kadıköy kişi başı yeşil alan 4.1 m2",
			DocType: strp("metric"), DistrictName: strp("Kadıköy"), MetricKey: strp("green_area_per_capita"),
			DistrictID: 12, Value: 4.1, Unit: strp("m2"), Year: i64p(2023),
		},
		{
			ID:         "",
			Text:       "İstanbul genel nüfus özeti",
			DocType:    strp("summary"),
			DistrictID: math.NaN(),
			Value:      math.NaN(),
		},
		{
			ID: "besiktas-housing", Text: "Beşiktaş ortalama kira",
			DocType: strp("metric"), DistrictName: strp("Beşiktaş"), MetricKey: strp("avg_rent"),
			DistrictID: 3, Value: 32000, Unit: strp("TRY"), Year: i64p(2024),
		},
	}
}

func TestReadMetadata(t *testing.T) {
	path := writeMetadata(t, sampleRows())

	got, err := ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(got))
	}

	first := got[0]
	if first.ID != "kadikoy-green" || first.Text != "Kadıköy kişi başı yeşil alan 4.1 m2" {
		t.Errorf("unexpected first snippet: %+v", first)
	}
	if snippet.Deref(first.MetricKey) != "green_area_per_capita" {
		t.Errorf("metric_key = %v", first.MetricKey)
	}
	if first.DistrictID == nil || *first.DistrictID != 12 {
		t.Errorf("district_id = %v", first.DistrictID)
	}
	if first.Value == nil || *first.Value != 4.1 {
		t.Errorf("value = %v", first.Value)
	}
	if first.Year == nil || *first.Year != 2023 {
		t.Errorf("year = %v", first.Year)
	}
}

func TestReadMetadata_NullsAndNaN(t *testing.T) {
	path := writeMetadata(t, sampleRows())

	got, err := ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	s := got[1]
	if s.ID != "1" {
		t.Errorf("missing id should fall back to row position, got %q", s.ID)
	}
	if s.DistrictName != nil || s.MetricKey != nil || s.Unit != nil {
		t.Errorf("expected nil strings, got %+v", s)
	}
	if s.DistrictID != nil {
		t.Errorf("NaN district_id should be nil, got %v", *s.DistrictID)
	}
	if s.Value != nil {
		t.Errorf("NaN value should be nil, got %v", *s.Value)
	}
	if s.Year != nil {
		t.Errorf("null year should be nil, got %v", *s.Year)
	}
	if !s.Group().Missing {
		t.Errorf("metric-less snippet should be in the missing group, got %+v", s.Group())
	}
}

func TestReadMetadata_MissingFile(t *testing.T) {
	if _, err := ReadMetadata(context.Background(), filepath.Join(t.TempDir(), "none.parquet")); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadMetadata_NoTextColumn(t *testing.T) {
	type row struct {
		ID string `parquet:"id"`
	}
	path := filepath.Join(t.TempDir(), "bad.parquet")
	if err := parquet.WriteFile(path, []row{{ID: "a"}}); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if _, err := ReadMetadata(context.Background(), path); err == nil {
		t.Fatal("expected error for missing text column")
	}
}

func TestReadMetadata_ExtraColumns(t *testing.T) {
	type row struct {
		ID         string   `parquet:"id"`
		Text       string   `parquet:"text"`
		MetricKey  *string  `parquet:"metric_key"`
		Source     *string  `parquet:"source"`
		Population int64    `parquet:"population"`
		AreaKm2    float64  `parquet:"area_km2"`
		Verified   bool     `parquet:"verified"`
		Index      int64    `parquet:"__index_level_0__"`
		Density    *float64 `parquet:"density"`
	}
	path := filepath.Join(t.TempDir(), "extra.parquet")
	rows := []row{
		{ID: "a", Text: "Kadıköy nüfus", MetricKey: strp(""), Source: strp("tuik"),
			Population: 467919, AreaKm2: 25.2, Verified: true, Index: 0},
		{ID: "b", Text: "Şile nüfus", AreaKm2: math.NaN(), Index: 1},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}

	got, err := ReadMetadata(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(got))
	}

	first := got[0]
	if first.MetricKey == nil || *first.MetricKey != "" {
		t.Errorf("empty metric_key should stay an empty string, got %v", first.MetricKey)
	}
	if first.Extra["source"] != "tuik" {
		t.Errorf("source = %v", first.Extra["source"])
	}
	if first.Extra["population"] != int64(467919) {
		t.Errorf("population = %#v", first.Extra["population"])
	}
	if first.Extra["area_km2"] != 25.2 {
		t.Errorf("area_km2 = %#v", first.Extra["area_km2"])
	}
	if first.Extra["verified"] != true {
		t.Errorf("verified = %#v", first.Extra["verified"])
	}
	if _, ok := first.Extra["__index_level_0__"]; ok {
		t.Error("pandas index column must not be passed through")
	}

	second := got[1]
	if second.MetricKey != nil {
		t.Errorf("null metric_key should be nil, got %q", *second.MetricKey)
	}
	for _, k := range []string{"source", "area_km2", "density"} {
		v, ok := second.Extra[k]
		if !ok || v != nil {
			t.Errorf("%s should be present and nil, got %#v (present=%v)", k, v, ok)
		}
	}
}

func TestReadMetadata_Canceled(t *testing.T) {
	path := writeMetadata(t, sampleRows())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadMetadata(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Misaligned(t *testing.T) {
	idx, _ := flat.New(2, []float32{0, 0, 1, 1})
	_, err := New([]snippet.Snippet{{ID: "only"}}, idx)
	if !errors.Is(err, domain.ErrCorpusMisaligned) {
		t.Fatalf("expected ErrCorpusMisaligned, got %v", err)
	}
}

func TestNew_EmptyIndex(t *testing.T) {
	idx, _ := flat.New(2, nil)
	if _, err := New(nil, idx); !errors.Is(err, flat.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestLoad_EmptyIndex(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeMetadata(t, sampleRows())

	idx, _ := flat.New(2, nil)
	indexPath := filepath.Join(dir, "rag_knowledge.index")
	writeIndex(t, idx, indexPath)

	if _, err := Load(context.Background(), metaPath, indexPath); !errors.Is(err, flat.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestCorpus_Search(t *testing.T) {
	idx, _ := flat.New(2, []float32{
		0, 0,
		5, 5,
		1, 0,
	})
	c, err := New([]snippet.Snippet{{ID: "a"}, {ID: "b"}, {ID: "c"}}, idx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Search(context.Background(), []float32{0.9, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Snippet.ID != "c" || got[1].Snippet.ID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Distance > got[1].Distance {
		t.Errorf("expected ascending distance")
	}
	if got[0].Score != 0 {
		t.Errorf("score must be unset before reranking")
	}
}

func TestCorpus_SearchDimMismatch(t *testing.T) {
	idx, _ := flat.New(2, []float32{0, 0})
	c, _ := New([]snippet.Snippet{{ID: "a"}}, idx)
	if _, err := c.Search(context.Background(), []float32{1}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeMetadata(t, sampleRows())

	idx, _ := flat.New(2, []float32{0, 0, 1, 1, 2, 2})
	indexPath := filepath.Join(dir, "rag_knowledge.index")
	writeIndex(t, idx, indexPath)

	c, err := Load(context.Background(), metaPath, indexPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 3 || c.Dim() != 2 {
		t.Fatalf("Len=%d Dim=%d", c.Len(), c.Dim())
	}
	s, ok := c.Snippet(2)
	if !ok || s.ID != "besiktas-housing" {
		t.Errorf("Snippet(2) = %+v, %v", s, ok)
	}
	if _, ok := c.Snippet(3); ok {
		t.Error("Snippet(3) should be out of range")
	}
}

func TestLoad_Misaligned(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeMetadata(t, sampleRows())

	idx, _ := flat.New(2, []float32{0, 0, 1, 1})
	indexPath := filepath.Join(dir, "rag_knowledge.index")
	writeIndex(t, idx, indexPath)

	if _, err := Load(context.Background(), metaPath, indexPath); !errors.Is(err, domain.ErrCorpusMisaligned) {
		t.Fatalf("expected ErrCorpusMisaligned, got %v", err)
	}
}
