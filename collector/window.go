package collector

import (
	"iter"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/spf13/cast"
)

// timestampField is the key carrying a raw data point's instant.
const timestampField = "Timestamp"

// DataPoint is a backend-reported record split into its instant and its
// numeric fields. It is never emitted directly.
type DataPoint struct {
	Timestamp time.Time
	Fields    map[string]any
}

// FieldTotal is the windowed sum of one data point field.
type FieldTotal struct {
	Field string
	Total int64
}

// ParseDataPoint extracts the timestamp of a raw record. A record without a
// parseable timestamp is malformed; it is never skipped silently.
func ParseDataPoint(raw map[string]any) (DataPoint, error) {
	v, ok := raw[timestampField]
	if !ok || v == nil || v == "" {
		return DataPoint{}, malformed("data point without %s", timestampField)
	}
	ts, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
	if err != nil {
		return DataPoint{}, malformed("data point %s %v: %v", timestampField, v, err)
	}

	fields := make(map[string]any, len(raw))
	for k, f := range raw {
		if k != timestampField {
			fields[k] = f
		}
	}
	return DataPoint{Timestamp: ts, Fields: fields}, nil
}

// Since passes through only the points strictly newer than cutoff. Errors
// are passed through unchanged.
func Since(points iter.Seq2[DataPoint, error], cutoff time.Time) iter.Seq2[DataPoint, error] {
	return func(yield func(DataPoint, error) bool) {
		for p, err := range points {
			if err == nil && !p.Timestamp.After(cutoff) {
				continue
			}
			if !yield(p, err) {
				return
			}
		}
	}
}

// SumFields folds points into per-field integer totals, ordered by field
// name. Fractional values are truncated toward zero before they are added.
func SumFields(points iter.Seq2[DataPoint, error]) ([]FieldTotal, error) {
	totals := make(map[string]int64)
	for p, err := range points {
		if err != nil {
			return nil, err
		}
		for field, v := range p.Fields {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, malformed("field %s: %v", field, err)
			}
			totals[field] += int64(math.Trunc(f))
		}
	}

	out := make([]FieldTotal, 0, len(totals))
	for _, field := range slices.Sorted(maps.Keys(totals)) {
		out = append(out, FieldTotal{Field: field, Total: totals[field]})
	}
	return out, nil
}
