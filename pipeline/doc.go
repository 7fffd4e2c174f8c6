// Package pipeline implements lazy, composable batch pipelines with
// optional concurrent prefetching.
//
// A Pipeline is an immutable, ordered list of named actions bound to at
// most one Source. Composing operators (Append, Concat, WithProbability,
// WithRepeat, Join, AppendPipeline) never mutate a pipeline another
// reference may still hold; each returns a new Pipeline. Nothing
// executes until batches are pulled through GenBatches, Run, or
// NextBatch.
//
// # Composition
//
//	p, _ := pipeline.New(reg, src).Append("normalize", nil, nil)
//	p, _ = p.WithProbability(0.5)
//	p, _ = p.WithRepeat(3)
//
// # Execution
//
//	it, _ := p.GenBatches(ctx, pipeline.RunConfig{BatchSize: 64, Prefetch: 4})
//	defer it.Close()
//	for {
//		b, ok, err := it.Next(ctx)
//		...
//	}
//
// With Prefetch > 0 batch creation and action execution run on a worker
// pool behind a bounded three-stage queue chain; output order always
// equals generation order. An action may return ErrSkipBatch to drop the
// current batch from the output stream without aborting the run.
package pipeline
