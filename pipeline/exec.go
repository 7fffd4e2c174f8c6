package pipeline

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"sync"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/observability"
)

// ErrSkipBatch signals that the current batch must be dropped from the
// output stream. Actions return it (or wrap it) to discard a batch
// without aborting the run.
var ErrSkipBatch = stderrors.New("skip batch")

// execEnv carries the per-run collaborators the sequential executor
// needs: the gating RNG, the run logger, metrics, and the prefetch
// depth seen by sink attachments.
type execEnv struct {
	mu       sync.Mutex
	rng      *rand.Rand
	log      *logger.Logger
	metrics  *observability.PipelineMetrics
	prefetch int
}

func newExecEnv(seed uint64, prefetch int, metrics *observability.PipelineMetrics) *execEnv {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &execEnv{
		rng:      rand.New(rand.NewPCG(seed, seed)),
		log:      logger.Get("pipeline"),
		metrics:  metrics,
		prefetch: prefetch,
	}
}

// bernoulli draws one gating trial. The RNG is shared by all workers of
// a run, so draws are serialized.
func (e *execEnv) bernoulli(proba float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < proba
}

// needsExec decides whether the descriptor fires on this visit. The
// decision is drawn once per visit and shared by all repeat iterations.
func (e *execEnv) needsExec(d *actionDescriptor) bool {
	if d.proba == nil {
		return true
	}
	return e.bernoulli(*d.proba)
}

// execAll walks a descriptor list against one batch and returns the
// final batch. Join markers are consumed by the next ordinary
// descriptor; nested pipelines execute their whole inner list as one
// atomic unit per repeat iteration.
func (p *Pipeline) execAll(ctx context.Context, b Batch, actions []*actionDescriptor, env *execEnv) (Batch, error) {
	var pendingJoin []Source
	for _, d := range actions {
		switch {
		case d.isJoin():
			pendingJoin = d.joined
		case d.isNested():
			if env.needsExec(d) {
				for range d.repeatCount() {
					next, err := p.execAll(ctx, b, d.inner.actions, env)
					if err != nil {
						return nil, err
					}
					b = next
				}
			}
		default:
			args := d.args
			if pendingJoin != nil {
				joined := make([]any, 0, len(pendingJoin)+len(d.args))
				for _, src := range pendingJoin {
					jb, err := src.CreateBatch(ctx, b.Index())
					if err != nil {
						return nil, err
					}
					joined = append(joined, jb)
				}
				args = append(joined, d.args...)
				pendingJoin = nil
			}
			if env.needsExec(d) {
				for range d.repeatCount() {
					next, err := p.registry.dispatch(ctx, b, d.name, args, d.kwargs)
					if err != nil {
						return nil, err
					}
					b = next
				}
				if d.sink != nil {
					if err := d.sink.forward(ctx, b, env); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return b, nil
}

// CreateBatch builds one batch from the given index and applies every
// recorded action inline on the caller's goroutine.
func (p *Pipeline) CreateBatch(ctx context.Context, index Index) (Batch, error) {
	if p.source == nil {
		return nil, errors.MissingField("source")
	}
	b, err := p.source.CreateBatch(ctx, index)
	if err != nil {
		return nil, err
	}
	return p.execAll(ctx, b, p.actions, newExecEnv(0, 0, nil))
}

// isFatalDispatch reports whether err indicates a construction-time
// mistake that must abort the run rather than skip one batch.
func isFatalDispatch(err error) bool {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case errors.ErrCodeUnknownCapability,
		errors.ErrCodeCapabilityNotRegistered,
		errors.ErrCodeMethodNotFound:
		return true
	}
	return false
}
