package testutil

import (
	"context"
	"testing"

	"github.com/kbukum/batchkit/pipeline"
)

// Values asserts that b is a RecordBatch and returns its values.
func Values(t *testing.T, b pipeline.Batch) []float64 {
	t.Helper()
	rb, ok := b.(*RecordBatch)
	if !ok {
		t.Fatalf("want *RecordBatch, got %T", b)
	}
	return rb.Vals
}

// Collect drains the iterator and returns the values of every
// delivered batch, failing the test on any iteration error.
func Collect(ctx context.Context, t *testing.T, it *pipeline.BatchIterator) [][]float64 {
	t.Helper()
	defer it.Close()

	var out [][]float64
	for {
		b, ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, Values(t, b))
	}
}

// FirstValues generates one pass and returns the collected values.
func FirstValues(ctx context.Context, t *testing.T, p *pipeline.Pipeline, cfg pipeline.RunConfig) [][]float64 {
	t.Helper()
	it, err := p.GenBatches(ctx, cfg)
	if err != nil {
		t.Fatalf("GenBatches: %v", err)
	}
	return Collect(ctx, t, it)
}
