package pipeline

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/observability"
	"github.com/kbukum/batchkit/validation"
)

// WorkerKind selects the execution vehicle for prefetch workers.
type WorkerKind string

const (
	// WorkersThreads runs batch execution on a goroutine pool.
	WorkersThreads WorkerKind = "threads"
	// WorkersProcesses is recognized for compatibility but not
	// supported: the Go runtime has no fork-based worker pool.
	WorkersProcesses WorkerKind = "processes"
)

// RunConfig configures one generation pass over a pipeline's source.
type RunConfig struct {
	// BatchSize is the number of items per batch.
	BatchSize int `mapstructure:"batch_size" json:"batch_size" validate:"gt=0"`
	// Shuffle randomizes item order within each epoch.
	Shuffle bool `mapstructure:"shuffle" json:"shuffle"`
	// Epochs is the number of passes over the source. Zero defaults to
	// one; negative means unbounded.
	Epochs int `mapstructure:"epochs" json:"epochs"`
	// DropLast discards a trailing batch smaller than BatchSize.
	DropLast bool `mapstructure:"drop_last" json:"drop_last"`
	// Prefetch is the number of batches generated ahead of delivery.
	// Zero disables the prefetch engine and runs inline.
	Prefetch int `mapstructure:"prefetch" json:"prefetch" validate:"gte=0"`
	// Workers selects the worker pool kind. Defaults to threads.
	Workers WorkerKind `mapstructure:"workers" json:"workers" validate:"omitempty,oneof=threads processes"`
	// Seed seeds probability gating and shuffling. Zero picks a random
	// seed.
	Seed uint64 `mapstructure:"seed" json:"seed"`
	// Metrics, when set, receives per-batch counters and timings.
	Metrics *observability.PipelineMetrics `mapstructure:"-" json:"-"`
}

// BatchIterator streams the results of one generation pass. Exhaustion
// and Close both tear the pass down fully, so the owning pipeline can
// be iterated again from scratch.
type BatchIterator struct {
	p       *Pipeline
	env     *execEnv
	indices IndexIterator
	rc      *runContext
	closed  bool
}

// GenBatches starts one generation pass and returns its iterator.
// With cfg.Prefetch > 0 batch creation and action execution run on a
// worker pool; otherwise everything happens inline in Next.
func (p *Pipeline) GenBatches(ctx context.Context, cfg RunConfig) (*BatchIterator, error) {
	if p.source == nil {
		return nil, errors.MissingField("source")
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	switch cfg.Workers {
	case "", WorkersThreads:
	case WorkersProcesses:
		return nil, errors.InvalidInput("workers", "process-based worker pools are not supported")
	}

	epochs := cfg.Epochs
	if epochs == 0 {
		epochs = 1
	}
	env := newExecEnv(cfg.Seed, cfg.Prefetch, cfg.Metrics)
	indices := p.source.GenIndices(ctx, IndexRequest{
		BatchSize: cfg.BatchSize,
		Shuffle:   cfg.Shuffle,
		Epochs:    epochs,
		DropLast:  cfg.DropLast,
		Seed:      cfg.Seed,
	})

	it := &BatchIterator{p: p, env: env, indices: indices}
	if cfg.Prefetch > 0 {
		it.rc = newRunContext(ctx, cfg.Prefetch, env)
		it.rc.log.Debug("starting prefetched run", map[string]any{
			"prefetch": cfg.Prefetch, "batch_size": cfg.BatchSize,
		})
		it.rc.start(p, indices)
	}
	return it, nil
}

// Next returns the next fully processed batch. It returns
// (nil, false, nil) at exhaustion, after which the pass is torn down.
func (it *BatchIterator) Next(ctx context.Context) (Batch, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	if it.rc != nil {
		return it.nextPrefetched(ctx)
	}
	return it.nextInline(ctx)
}

func (it *BatchIterator) nextPrefetched(ctx context.Context) (Batch, bool, error) {
	// A delivered batch may already be parked in the delivery slot.
	// Cancellation still wins, so a cancelled pass never hands out
	// another batch.
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	select {
	case d := <-it.rc.delivery:
		if d.end {
			it.Close()
			return nil, false, nil
		}
		if d.err != nil {
			it.Close()
			return nil, false, d.err
		}
		it.env.metrics.RecordDelivered(ctx)
		return d.batch, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (it *BatchIterator) nextInline(ctx context.Context) (Batch, bool, error) {
	for {
		index, ok, err := it.indices.Next(ctx)
		if err != nil {
			it.Close()
			return nil, false, err
		}
		if !ok {
			it.Close()
			return nil, false, nil
		}

		b, err := it.p.source.CreateBatch(ctx, index)
		if err == nil {
			it.env.metrics.RecordGenerated(ctx)
			b, err = it.p.execAll(ctx, b, it.p.actions, it.env)
		}
		if err != nil {
			if stderrors.Is(err, ErrSkipBatch) {
				it.env.metrics.RecordSkipped(ctx)
				continue
			}
			it.Close()
			return nil, false, err
		}
		it.env.metrics.RecordDelivered(ctx)
		return b, true, nil
	}
}

// Close tears the pass down: stops service goroutines, drains queues,
// shuts the worker pool, and resets the source's iteration state.
// Idempotent and safe mid-run.
func (it *BatchIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.rc != nil {
		it.rc.teardown()
		it.rc = nil
	}
	_ = it.indices.Close()
	it.p.source.ResetIter()
	return nil
}

// Run executes every lazy action for each batch of one full pass,
// discarding the results.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, uuid.NewString())
	observability.SetSpanAttribute(ctx, observability.AttrBatchSize, cfg.BatchSize)

	it, err := p.GenBatches(ctx, cfg)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	defer it.Close()
	for {
		_, ok, err := it.Next(ctx)
		if err != nil {
			observability.SetSpanError(ctx, err)
			return err
		}
		if !ok {
			return nil
		}
	}
}

// NextBatch pulls one batch from a generator cached on the pipeline,
// starting it on first use with cfg. Returns ok=false once the pass is
// exhausted; the cached generator is then discarded so a later call
// starts a fresh pass.
func (p *Pipeline) NextBatch(ctx context.Context, cfg RunConfig) (Batch, bool, error) {
	p.mu.Lock()
	gen := p.gen
	if gen == nil {
		var err error
		gen, err = p.GenBatches(ctx, cfg)
		if err != nil {
			p.mu.Unlock()
			return nil, false, err
		}
		p.gen = gen
	}
	p.mu.Unlock()

	b, ok, err := gen.Next(ctx)
	if !ok || err != nil {
		p.mu.Lock()
		if p.gen == gen {
			p.gen = nil
		}
		p.mu.Unlock()
	}
	return b, ok, err
}

// ResetIter clears all iteration state so the next run starts from
// scratch. Safe to call whether or not a run is in flight.
func (p *Pipeline) ResetIter() {
	p.mu.Lock()
	gen := p.gen
	p.gen = nil
	p.mu.Unlock()

	if gen != nil {
		_ = gen.Close()
	} else if p.source != nil {
		p.source.ResetIter()
	}
}
