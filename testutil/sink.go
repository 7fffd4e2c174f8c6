package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/pipeline"
)

// MemorySession is a channel-backed SinkSession. It records how many
// queues it created so tests can assert lazy initialization happens
// exactly once.
type MemorySession struct {
	// CreateErr, when set, is returned from CreateQueue.
	CreateErr error

	mu      sync.Mutex
	created int
	last    *MemoryQueue
}

// CreateQueue builds a MemoryQueue with the given capacity.
func (s *MemorySession) CreateQueue(capacity int, sample []any) (pipeline.SinkQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if capacity < 1 {
		capacity = 1
	}
	q := &MemoryQueue{ch: make(chan []any, capacity)}
	s.last = q
	return q, nil
}

// Enqueue blocks until the queue accepts the values or ctx is done.
func (s *MemorySession) Enqueue(ctx context.Context, queue pipeline.SinkQueue, values []any) error {
	q, ok := queue.(*MemoryQueue)
	if !ok {
		return errors.InvalidInput("queue", "not a MemoryQueue")
	}
	select {
	case q.ch <- values:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Created returns how many queues CreateQueue has built.
func (s *MemorySession) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Queue returns the most recently created queue, or nil.
func (s *MemorySession) Queue() *MemoryQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// MemoryQueue buffers enqueued value sets.
type MemoryQueue struct {
	ch chan []any
}

// NewMemoryQueue builds a standalone queue for pre-created-queue tests.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan []any, capacity)}
}

// Len returns the number of buffered value sets.
func (q *MemoryQueue) Len() int { return len(q.ch) }

// Drain returns everything currently buffered without blocking.
func (q *MemoryQueue) Drain() [][]any {
	var out [][]any
	for {
		select {
		case v := <-q.ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
