// Package snippet defines the retrievable unit of grounding text.
package snippet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Snippet is one corpus record. Optional metadata is nil when the source value is
// missing or a NaN sentinel; nil fields serialize as JSON null. Extra holds metadata
// columns outside the known set and is flattened into the JSON object.
type Snippet struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	DocType      *string  `json:"doc_type"`
	DistrictName *string  `json:"district_name"`
	MetricKey    *string  `json:"metric_key"`
	DistrictID   *int64   `json:"district_id"`
	Value        *float64 `json:"value"`
	Unit         *string  `json:"unit"`
	Year         *int64   `json:"year"`

	Extra map[string]any `json:"-"`
}

// knownFields are the JSON names owned by Snippet; Extra never overrides them.
var knownFields = map[string]struct{}{
	"id": {}, "text": {}, "doc_type": {}, "district_name": {}, "metric_key": {},
	"district_id": {}, "value": {}, "unit": {}, "year": {},
}

// IsKnownField reports whether name is a Snippet JSON field.
func IsKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}

// MarshalJSON writes the known fields in declaration order followed by Extra in key order.
func (s Snippet) MarshalJSON() ([]byte, error) {
	type plain Snippet
	base, err := json.Marshal(plain(s))
	if err != nil || len(s.Extra) == 0 {
		return base, err //nolint:wrapcheck // encoding/json error
	}

	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		if !IsKnownField(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		name, _ := json.Marshal(k)
		val, err := json.Marshal(s.Extra[k])
		if err != nil {
			return nil, fmt.Errorf("extra field %q: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Group identifies a diversification group. A missing metric key is its own group,
// separate from an empty one.
type Group struct {
	Key     string
	Missing bool
}

// Group returns the diversification group of s.
func (s *Snippet) Group() Group {
	if s.MetricKey == nil {
		return Group{Missing: true}
	}
	return Group{Key: *s.MetricKey}
}

// Deref returns the pointed-to string or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// String returns a pointer to v.
func String(v string) *string { return &v }

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FloatPtr normalizes an optional float: nil and non-finite values become nil.
func FloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

// IntFromFloat converts an optional float column holding integral values (pandas stores
// nullable ints as float64 with NaN) into an optional int.
func IntFromFloat(p *float64) *int64 {
	f := FloatPtr(p)
	if f == nil {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}
