package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/pipeline"
)

// SliceSource serves records from an in-memory float64 slice.
//
// It counts CreateBatch calls and ResetIter calls so tests can assert
// how much work a run performed and that teardown reached the source.
type SliceSource struct {
	// Values are the records, addressed by position.
	Values []float64
	// FailItem, when >= 0, makes CreateBatch fail for any index
	// containing that item.
	FailItem int

	mu      sync.Mutex
	created int
	resets  int
}

// NewSliceSource returns a source over the values 0..n-1.
func NewSliceSource(n int) *SliceSource {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return &SliceSource{Values: vals, FailItem: -1}
}

// GenIndices partitions the source into batches per the request.
// Shuffling reorders items independently in each epoch, seeded from
// req.Seed so runs are reproducible.
func (s *SliceSource) GenIndices(ctx context.Context, req pipeline.IndexRequest) pipeline.IndexIterator {
	return &sliceIndices{src: s, req: req}
}

// CreateBatch copies the addressed values into a RecordBatch.
func (s *SliceSource) CreateBatch(ctx context.Context, index pipeline.Index) (pipeline.Batch, error) {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()

	vals := make([]float64, 0, len(index))
	for _, i := range index {
		if i < 0 || i >= len(s.Values) {
			return nil, errors.InvalidInput("index", fmt.Sprintf("item %d out of range [0, %d)", i, len(s.Values)))
		}
		if i == s.FailItem {
			return nil, errors.Internal(fmt.Errorf("injected failure on item %d", i))
		}
		vals = append(vals, s.Values[i])
	}
	return NewRecordBatch(index, vals), nil
}

// ResetIter records that a run released the source.
func (s *SliceSource) ResetIter() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

// Created returns how many batches CreateBatch has built.
func (s *SliceSource) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Resets returns how many times ResetIter was called.
func (s *SliceSource) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

type sliceIndices struct {
	src   *SliceSource
	req   pipeline.IndexRequest
	epoch int
	order []int
	pos   int
	done  bool
}

func (it *sliceIndices) Next(ctx context.Context) (pipeline.Index, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	for {
		if it.order == nil {
			if it.req.Epochs >= 0 && it.epoch >= it.req.Epochs {
				it.done = true
				return nil, false, nil
			}
			it.order = it.epochOrder(it.epoch)
			it.pos = 0
			it.epoch++
		}
		if it.pos >= len(it.order) {
			it.order = nil
			continue
		}
		end := it.pos + it.req.BatchSize
		if end > len(it.order) {
			if it.req.DropLast {
				it.order = nil
				continue
			}
			end = len(it.order)
		}
		idx := pipeline.Index(it.order[it.pos:end])
		it.pos = end
		return idx, true, nil
	}
}

func (it *sliceIndices) Close() error {
	it.done = true
	return nil
}

func (it *sliceIndices) epochOrder(epoch int) []int {
	n := len(it.src.Values)
	if !it.req.Shuffle {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	seed := it.req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, uint64(epoch)))
	return rng.Perm(n)
}
