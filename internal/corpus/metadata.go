package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/cityrag/internal/domain/snippet"
)

const readBatch = 1000

// pandasIndexPrefix marks the index column pandas writes alongside the data.
const pandasIndexPrefix = "__index_level_"

// metadataColumns holds leaf column indexes, -1 when absent. extra maps the remaining
// top-level columns to their names.
type metadataColumns struct {
	id           int
	text         int
	docType      int
	districtName int
	metricKey    int
	districtID   int
	value        int
	unit         int
	year         int
	extra        map[int]string
}

func resolveColumns(pf *parquet.File) (metadataColumns, error) {
	cols := metadataColumns{
		id: -1, text: -1, docType: -1, districtName: -1, metricKey: -1,
		districtID: -1, value: -1, unit: -1, year: -1,
		extra: map[int]string{},
	}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "id", "doc_id":
			if cols.id < 0 {
				cols.id = i
			} else if len(path) == 1 {
				cols.extra[i] = path[0]
			}
		case "text":
			cols.text = i
		case "doc_type":
			cols.docType = i
		case "district_name":
			cols.districtName = i
		case "metric_key":
			cols.metricKey = i
		case "district_id":
			cols.districtID = i
		case "value":
			cols.value = i
		case "unit":
			cols.unit = i
		case "year":
			cols.year = i
		default:
			if len(path) == 1 && !strings.HasPrefix(path[0], pandasIndexPrefix) {
				cols.extra[i] = path[0]
			}
		}
	}
	if cols.text < 0 {
		return cols, errors.New("text column not found in parquet schema")
	}
	return cols, nil
}

// ReadMetadata loads every row of a metadata parquet file in file order.
// Missing values and NaN sentinels become nil; a row without an id gets its position.
func ReadMetadata(ctx context.Context, path string) ([]snippet.Snippet, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	cols, err := resolveColumns(pf)
	if err != nil {
		return nil, err
	}

	out := make([]snippet.Snippet, 0, pf.NumRows())
	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				out = append(out, rowToSnippet(buf[i], cols, len(out)))
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return out, nil
}

func rowToSnippet(row parquet.Row, cols metadataColumns, pos int) snippet.Snippet {
	var s snippet.Snippet
	for _, v := range row {
		switch v.Column() {
		case cols.id:
			s.ID = snippet.Deref(stringValue(v))
		case cols.text:
			s.Text = snippet.Deref(stringValue(v))
		case cols.docType:
			s.DocType = stringValue(v)
		case cols.districtName:
			s.DistrictName = stringValue(v)
		case cols.metricKey:
			s.MetricKey = stringValue(v)
		case cols.unit:
			s.Unit = stringValue(v)
		case cols.value:
			s.Value = floatValue(v)
		case cols.districtID:
			s.DistrictID = snippet.IntFromFloat(floatValue(v))
		case cols.year:
			s.Year = snippet.IntFromFloat(floatValue(v))
		default:
			name, ok := cols.extra[v.Column()]
			if !ok || snippet.IsKnownField(name) {
				continue
			}
			if s.Extra == nil {
				s.Extra = make(map[string]any, len(cols.extra))
			}
			s.Extra[name] = extraValue(v)
		}
	}
	if s.ID == "" {
		s.ID = strconv.Itoa(pos)
	}
	return s
}

// stringValue renders any scalar as text; nulls and NaN become nil.
func stringValue(v parquet.Value) *string {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return snippet.String(string(v.ByteArray()))
	case parquet.Int32:
		return snippet.String(strconv.FormatInt(int64(v.Int32()), 10))
	case parquet.Int64:
		return snippet.String(strconv.FormatInt(v.Int64(), 10))
	case parquet.Float, parquet.Double:
		f := floatValue(v)
		if f == nil {
			return nil
		}
		return snippet.String(strconv.FormatFloat(*f, 'f', -1, 64))
	case parquet.Boolean:
		return snippet.String(strconv.FormatBool(v.Boolean()))
	default:
		return nil
	}
}

// floatValue reads a numeric column; nulls, NaN and non-numeric kinds become nil.
func floatValue(v parquet.Value) *float64 {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Double:
		return snippet.Float(v.Double())
	case parquet.Float:
		return snippet.Float(float64(v.Float()))
	case parquet.Int32:
		return snippet.Float(float64(v.Int32()))
	case parquet.Int64:
		return snippet.Float(float64(v.Int64()))
	case parquet.ByteArray:
		f, err := strconv.ParseFloat(string(v.ByteArray()), 64)
		if err != nil || math.IsNaN(f) {
			return nil
		}
		return snippet.Float(f)
	default:
		return nil
	}
}

// extraValue keeps the column's scalar type; nulls and NaN become nil.
func extraValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float, parquet.Double:
		if f := floatValue(v); f != nil {
			return *f
		}
		return nil
	case parquet.Boolean:
		return v.Boolean()
	default:
		return nil
	}
}
