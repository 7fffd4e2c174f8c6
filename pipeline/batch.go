package pipeline

import "context"

// Index identifies the items that make up one batch.
type Index []int

// Batch is a unit of data flowing through a pipeline. Each action
// dispatch returns a (possibly new) Batch, forming a transformation
// chain.
type Batch interface {
	// Index returns the item indices this batch was built from.
	Index() Index
	// Kind returns the batch variant name used for capability lookup.
	Kind() string
	// Data returns the batch payload. Used as the default tensor
	// accessor by sink attachments.
	Data() any
}

// IndexIterator is a lazy sequence of batch indices.
// Structurally compatible with the pull iterators used across batchkit.
type IndexIterator interface {
	// Next returns the next batch index. Returns (nil, false, nil) when
	// the sequence is exhausted.
	Next(ctx context.Context) (Index, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// IndexRequest configures the index sequence produced by a Source.
type IndexRequest struct {
	// BatchSize is the number of items per batch.
	BatchSize int
	// Shuffle randomizes item order within each epoch.
	Shuffle bool
	// Epochs is the number of passes over the source. Negative means
	// unbounded.
	Epochs int
	// DropLast discards a trailing batch smaller than BatchSize.
	DropLast bool
	// Seed seeds shuffling for reproducible runs. Zero lets the source
	// pick its own.
	Seed uint64
}

// Source provides indices and batches to a pipeline. Partitioning,
// shuffling and epoch accounting are the source's own concern.
type Source interface {
	// GenIndices returns a lazy sequence of batch indices for one run.
	GenIndices(ctx context.Context, req IndexRequest) IndexIterator
	// CreateBatch builds a batch from the given index.
	CreateBatch(ctx context.Context, index Index) (Batch, error)
	// ResetIter clears the source's iteration state so a fresh run can
	// start from scratch.
	ResetIter()
}
