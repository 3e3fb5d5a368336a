package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrBackendUnavailable means a source has no connected backend handle.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrMalformedResponse means the backend answered without a field the
	// query cannot do without.
	ErrMalformedResponse = errors.New("malformed response")
)

// Source is the public contract any metric source must satisfy.
type Source interface {
	// Name identifies the source in diagnostics.
	Name() string
	// FetchMetrics runs every query of the source in declaration order.
	// A failing query yields one non-nil error and contributes no samples;
	// the remaining queries still run.
	FetchMetrics(ctx context.Context) iter.Seq2[Sample, error]
}

// Query is one named metric of a source.
type Query struct {
	Name  string
	Fetch func(ctx context.Context) ([]Sample, error)
}

// QueryError records which query of which source failed.
type QueryError struct {
	Source string
	Metric string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Metric, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// FetchAll runs queries in order and concatenates their samples. A query's
// samples are only yielded once it has completed without error, so a
// malformed response never leaks half a metric.
func FetchAll(ctx context.Context, source string, queries []Query) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		for _, q := range queries {
			samples, err := q.Fetch(ctx)
			if err != nil {
				if !yield(Sample{}, &QueryError{Source: source, Metric: q.Name, Err: err}) {
					return
				}
				continue
			}
			for _, s := range samples {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
