package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/observability"
)

// maxPoolWorkers caps the worker pool at min(depth, 61) + 1 units.
const maxPoolWorkers = 61

// task is one submitted batch execution. done is closed when the
// worker finishes; batch/err must only be read after that.
type task struct {
	done  chan struct{}
	batch Batch
	err   error
	// fatal marks errors that must abort the run instead of skipping
	// one batch (index sequence failures, capability mistakes).
	fatal bool
}

// delivery is one slot of the single-capacity handoff queue.
type delivery struct {
	batch Batch
	err   error
	end   bool
}

// workerPool is a fixed-size pool of goroutines draining a job channel.
type workerPool struct {
	jobs     chan func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newWorkerPool(n int) *workerPool {
	p := &workerPool{jobs: make(chan func())}
	for range n {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// submit blocks until a worker accepts the job or ctx is done.
func (w *workerPool) submit(ctx context.Context, job func()) bool {
	select {
	case w.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// shutdown stops accepting jobs and waits for in-flight ones. Callers
// must guarantee no concurrent submit.
func (w *workerPool) shutdown() {
	w.stopOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()
}

// runContext owns the queues, worker pool and service goroutines of one
// generation pass. It is built fresh per run and never shared.
type runContext struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	stop   atomic.Bool

	// admission bounds generated-but-not-yet-delivered batches.
	admission chan struct{}
	// futures holds in-flight tasks in strict submission order. A nil
	// task is the end-of-stream sentinel.
	futures chan *task
	// delivery is the single-slot rendezvous with the caller.
	delivery chan delivery

	pool     *workerPool
	wg       sync.WaitGroup
	env      *execEnv
	log      *logger.Logger
	downOnce sync.Once
}

func newRunContext(parent context.Context, prefetch int, env *execEnv) *runContext {
	ctx, cancel := context.WithCancel(parent)
	workers := prefetch
	if workers > maxPoolWorkers {
		workers = maxPoolWorkers
	}
	id := uuid.NewString()
	return &runContext{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		admission: make(chan struct{}, prefetch+1),
		futures:   make(chan *task, prefetch),
		delivery:  make(chan delivery, 1),
		pool:      newWorkerPool(workers + 1),
		env:       env,
		log:       env.log.WithFields(map[string]any{logger.FieldRunID: id}),
	}
}

// start launches the producer and consumer service goroutines.
func (rc *runContext) start(p *Pipeline, indices IndexIterator) {
	rc.wg.Add(2)
	go rc.produce(p, indices)
	go rc.consume()
}

// produce acquires one admission token per batch index, submits the
// full sequential execution to the worker pool, and pushes the
// resulting future in submission order. A nil future ends the stream.
func (rc *runContext) produce(p *Pipeline, indices IndexIterator) {
	defer rc.wg.Done()
	for !rc.stop.Load() {
		select {
		case rc.admission <- struct{}{}:
		case <-rc.ctx.Done():
			return
		}

		index, ok, err := indices.Next(rc.ctx)
		if err != nil {
			t := &task{done: make(chan struct{}), err: err, fatal: true}
			close(t.done)
			select {
			case rc.futures <- t:
			case <-rc.ctx.Done():
			}
			break
		}
		if !ok {
			break
		}

		t := &task{done: make(chan struct{})}
		if !rc.pool.submit(rc.ctx, func() { rc.runTask(p, index, t) }) {
			return
		}
		rc.env.metrics.RecordGenerated(rc.ctx)

		select {
		case rc.futures <- t:
		case <-rc.ctx.Done():
			return
		}
	}
	select {
	case rc.futures <- nil:
	case <-rc.ctx.Done():
	}
}

// runTask builds one batch and applies the whole action chain inside a
// worker. Panics are contained and surfaced as task errors.
func (rc *runContext) runTask(p *Pipeline, index Index, t *task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("batch execution panic: %v\n%s", r, debug.Stack())
		}
	}()

	ctx, span := observability.StartSpan(rc.ctx, observability.SpanBatchExec)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrBatchSize, len(index))

	b, err := p.source.CreateBatch(ctx, index)
	if err == nil {
		start := time.Now()
		b, err = p.execAll(ctx, b, p.actions, rc.env)
		rc.env.metrics.ObserveExecution(ctx, time.Since(start))
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	t.batch, t.err = b, err
}

// consume awaits futures in submission order, so output order equals
// generation order regardless of which worker finishes first. Skipped
// and failed batches are dropped; fatal errors are delivered and end
// the run.
func (rc *runContext) consume() {
	defer rc.wg.Done()
	for !rc.stop.Load() {
		var t *task
		select {
		case t = <-rc.futures:
		case <-rc.ctx.Done():
			return
		}
		if t == nil {
			select {
			case rc.delivery <- delivery{end: true}:
			case <-rc.ctx.Done():
			}
			return
		}

		select {
		case <-t.done:
		case <-rc.ctx.Done():
			return
		}

		switch {
		case t.err == nil:
			select {
			case rc.delivery <- delivery{batch: t.batch}:
			case <-rc.ctx.Done():
				return
			}
		case stderrors.Is(t.err, ErrSkipBatch):
			rc.env.metrics.RecordSkipped(rc.ctx)
		case t.fatal || isFatalDispatch(t.err):
			select {
			case rc.delivery <- delivery{err: t.err}:
			case <-rc.ctx.Done():
			}
			return
		default:
			// One malformed batch never aborts the run.
			rc.log.WithError(t.err).Error("batch execution failed, dropping batch")
			rc.env.metrics.RecordFailed(rc.ctx)
		}

		select {
		case <-rc.admission:
		case <-rc.ctx.Done():
			return
		}
	}
}

// teardown stops the service goroutines, drains every queue so nothing
// stays blocked, and shuts the pool down. Safe to call more than once
// and at any point of a run.
func (rc *runContext) teardown() {
	rc.downOnce.Do(func() {
		rc.stop.Store(true)
		rc.cancel()
		rc.drain()
		rc.wg.Wait()
		rc.drain()
		rc.pool.shutdown()
	})
}

func (rc *runContext) drain() {
	for {
		select {
		case <-rc.admission:
		case <-rc.futures:
		case <-rc.delivery:
		default:
			return
		}
	}
}
