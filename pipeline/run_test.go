package pipeline_test

import (
	"context"
	"testing"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/pipeline"
	"github.com/kbukum/batchkit/testutil"
)

func scaled(t *testing.T, src pipeline.Source) *pipeline.Pipeline {
	t.Helper()
	return mustAppend(t, pipeline.New(testutil.NewRegistry(), src), "scale", []any{2.0}, nil)
}

func TestGenBatchesValidation(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(4)
	p := scaled(t, src)

	if _, err := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 0}); err == nil {
		t.Error("zero batch size accepted")
	}
	if _, err := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 2, Prefetch: -1}); err == nil {
		t.Error("negative prefetch accepted")
	}

	unbound := mustAppend(t, pipeline.New(testutil.NewRegistry(), nil), "scale", []any{2.0}, nil)
	if _, err := unbound.GenBatches(ctx, pipeline.RunConfig{BatchSize: 2}); errors.CodeOf(err) != errors.ErrCodeMissingField {
		t.Errorf("unbound source: want MISSING_FIELD, got %v", err)
	}
}

func TestProcessWorkersRejected(t *testing.T) {
	ctx := context.Background()
	p := scaled(t, testutil.NewSliceSource(4))

	_, err := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 2, Workers: pipeline.WorkersProcesses})
	if errors.CodeOf(err) != errors.ErrCodeInvalidInput {
		t.Fatalf("want INVALID_INPUT, got %v", err)
	}
}

func TestEpochsAndDropLast(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(5)
	p := scaled(t, src)

	got := testutil.FirstValues(ctx, t, p, pipeline.RunConfig{BatchSize: 2, Epochs: 2})
	// Each epoch: two full batches plus a trailing single.
	if len(got) != 6 {
		t.Fatalf("got %d batches, want 6", len(got))
	}
	if len(got[2]) != 1 || got[2][0] != 8 {
		t.Errorf("trailing batch = %v, want [8]", got[2])
	}

	src2 := testutil.NewSliceSource(5)
	got = testutil.FirstValues(ctx, t, scaled(t, src2),
		pipeline.RunConfig{BatchSize: 2, Epochs: 2, DropLast: true})
	if len(got) != 4 {
		t.Fatalf("with DropLast got %d batches, want 4", len(got))
	}
	for _, vals := range got {
		if len(vals) != 2 {
			t.Errorf("partial batch leaked through DropLast: %v", vals)
		}
	}
}

func TestShuffleIsSeededPerEpoch(t *testing.T) {
	ctx := context.Background()
	cfg := pipeline.RunConfig{BatchSize: 4, Epochs: 2, Shuffle: true, Seed: 99}

	a := testutil.FirstValues(ctx, t, scaled(t, testutil.NewSliceSource(16)), cfg)
	b := testutil.FirstValues(ctx, t, scaled(t, testutil.NewSliceSource(16)), cfg)
	assertValues(t, a, b)

	// Epochs shuffle independently.
	firstEpochSame := true
	for i := range 4 {
		for j := range a[i] {
			if a[i][j] != a[i+4][j] {
				firstEpochSame = false
			}
		}
	}
	if firstEpochSame {
		t.Error("both epochs produced identical order")
	}
}

func TestPrefetchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	cfg := pipeline.RunConfig{BatchSize: 4, Epochs: 3, Shuffle: true, Seed: 17}

	want := testutil.FirstValues(ctx, t, scaled(t, testutil.NewSliceSource(64)), cfg)
	for _, prefetch := range []int{1, 4, 16} {
		pcfg := cfg
		pcfg.Prefetch = prefetch
		got := testutil.FirstValues(ctx, t, scaled(t, testutil.NewSliceSource(64)), pcfg)
		if len(got) != len(want) {
			t.Fatalf("prefetch=%d: got %d batches, want %d", prefetch, len(got), len(want))
		}
		for i := range want {
			for j := range want[i] {
				if got[i][j] != want[i][j] {
					t.Fatalf("prefetch=%d: batch %d = %v, want %v", prefetch, i, got[i], want[i])
				}
			}
		}
	}
}

func TestCloseResetsSource(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(8)
	p := scaled(t, src)

	it, err := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 2, Prefetch: 2})
	if err != nil {
		t.Fatalf("GenBatches: %v", err)
	}
	if _, ok, err := it.Next(ctx); err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if src.Resets() != 1 {
		t.Errorf("source resets = %d, want 1", src.Resets())
	}

	// A fresh run after a mid-stream close sees the full pass.
	got := testutil.FirstValues(ctx, t, p, pipeline.RunConfig{BatchSize: 2, Prefetch: 2})
	if len(got) != 4 {
		t.Errorf("fresh run delivered %d batches, want 4", len(got))
	}
}

func TestNextBatchCachesGenerator(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(4)
	p := scaled(t, src)
	cfg := pipeline.RunConfig{BatchSize: 2}

	var seen int
	for {
		_, ok, err := p.NextBatch(ctx, cfg)
		if err != nil {
			t.Fatalf("NextBatch: %v", err)
		}
		if !ok {
			break
		}
		seen++
	}
	if seen != 2 {
		t.Fatalf("first pass delivered %d batches, want 2", seen)
	}

	// Exhaustion discards the cached generator; the next call starts over.
	b, ok, err := p.NextBatch(ctx, cfg)
	if err != nil || !ok {
		t.Fatalf("restarted pass: ok=%v err=%v", ok, err)
	}
	vals := testutil.Values(t, b)
	if vals[0] != 0 || vals[1] != 2 {
		t.Errorf("restarted pass first batch = %v, want [0 2]", vals)
	}
}

func TestResetIterMidRun(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(8)
	p := scaled(t, src)
	cfg := pipeline.RunConfig{BatchSize: 2, Prefetch: 2}

	if _, ok, err := p.NextBatch(ctx, cfg); err != nil || !ok {
		t.Fatalf("NextBatch: ok=%v err=%v", ok, err)
	}
	p.ResetIter()

	var seen int
	for {
		_, ok, err := p.NextBatch(ctx, cfg)
		if err != nil {
			t.Fatalf("NextBatch after reset: %v", err)
		}
		if !ok {
			break
		}
		seen++
	}
	if seen != 4 {
		t.Errorf("pass after reset delivered %d batches, want 4", seen)
	}
}

func TestRunDrainsWholePass(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(8)
	p := scaled(t, src)

	if err := p.Run(ctx, pipeline.RunConfig{BatchSize: 2, Prefetch: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.Created() != 4 {
		t.Errorf("source built %d batches, want 4", src.Created())
	}
	if src.Resets() != 1 {
		t.Errorf("source resets = %d, want 1", src.Resets())
	}
}

func TestUnboundedEpochs(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSliceSource(4)
	p := scaled(t, src)

	it, err := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 2, Epochs: -1})
	if err != nil {
		t.Fatalf("GenBatches: %v", err)
	}
	defer it.Close()

	// Far more batches than one epoch holds.
	for i := range 20 {
		_, ok, err := it.Next(ctx)
		if err != nil || !ok {
			t.Fatalf("batch %d: ok=%v err=%v", i, ok, err)
		}
	}
}
