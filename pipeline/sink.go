package pipeline

import (
	"context"
	"sync"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/observability"
)

// TensorExtractor pulls the values to enqueue from a batch. The default
// extractor uses Batch.Data, wrapping non-slice payloads as a single
// value.
type TensorExtractor func(b Batch) []any

// SinkQueue is an opaque handle to an external queue created or fed by
// a SinkSession.
type SinkQueue any

// SinkSession is the session-like executor an external tensor sink
// exposes. Implementations own placeholder/layout bookkeeping.
type SinkSession interface {
	// CreateQueue builds a queue sized for capacity items, deriving the
	// slot layout from the sample values of the first flowing batch.
	CreateQueue(capacity int, sample []any) (SinkQueue, error)
	// Enqueue blocks until the queue accepts the values.
	Enqueue(ctx context.Context, queue SinkQueue, values []any) error
}

// SinkConfig attaches an external queue after a specific action.
type SinkConfig struct {
	// Session executes queue creation and enqueues.
	Session SinkSession
	// Queue is an existing queue to feed. Created lazily when nil.
	Queue SinkQueue
	// GetTensor extracts the values to enqueue. Defaults to Batch.Data.
	GetTensor TensorExtractor
}

// sinkState is the lazily initialized runtime state of one attachment.
// Queue and layout are derived from the first flowing batch, exactly
// once, even when workers race to be first.
type sinkState struct {
	cfg   SinkConfig
	once  sync.Once
	queue SinkQueue
	err   error
}

func (s *sinkState) extract(b Batch) []any {
	if s.cfg.GetTensor != nil {
		return s.cfg.GetTensor(b)
	}
	if vals, ok := b.Data().([]any); ok {
		return vals
	}
	return []any{b.Data()}
}

// forward sends the batch's extracted values to the external queue,
// creating the queue from the first batch's layout if absent. The
// enqueue itself is blocking.
func (s *sinkState) forward(ctx context.Context, b Batch, env *execEnv) error {
	values := s.extract(b)
	s.once.Do(func() {
		if s.cfg.Queue != nil {
			s.queue = s.cfg.Queue
			return
		}
		capacity := env.prefetch
		if capacity < 1 {
			capacity = 1
		}
		s.queue, s.err = s.cfg.Session.CreateQueue(capacity, values)
	})
	if s.err != nil {
		return errors.SinkError(s.err)
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanSinkEnqueue)
	defer span.End()
	if err := s.cfg.Session.Enqueue(ctx, s.queue, values); err != nil {
		observability.SetSpanError(ctx, err)
		return errors.SinkError(err)
	}
	return nil
}

// PutIntoQueue attaches a sink after the pipeline's trailing action:
// every time that action fires, the resulting batch's values are pushed
// to the external queue. Skipped firings forward nothing. Fails on an
// empty pipeline.
func (p *Pipeline) PutIntoQueue(cfg SinkConfig) (*Pipeline, error) {
	if len(p.actions) == 0 {
		return nil, errors.EmptyPipeline("PutIntoQueue")
	}
	if cfg.Session == nil {
		return nil, errors.MissingField("session")
	}
	out := p.clone()
	last := *out.actions[len(out.actions)-1]
	last.sink = &sinkState{cfg: cfg}
	out.actions[len(out.actions)-1] = &last
	return out, nil
}
