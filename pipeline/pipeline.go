package pipeline

import (
	"math"
	"sync"

	"github.com/kbukum/batchkit/errors"
)

// Pipeline is an immutable, ordered list of action descriptors bound to
// at most one Source. Composing operators return a new Pipeline and
// never alter a descriptor list another Pipeline may still reference.
type Pipeline struct {
	registry *Registry
	source   Source
	actions  []*actionDescriptor

	// mu guards the cached generator used by NextBatch. Composition
	// never touches it; new pipelines start with no run state.
	mu  sync.Mutex
	gen *BatchIterator
}

// New creates an empty pipeline using the given capability registry,
// optionally bound to a source.
func New(registry *Registry, source Source) *Pipeline {
	return &Pipeline{registry: registry, source: source}
}

// clone returns a new pipeline sharing descriptors with p. The slice
// itself is copied so extending the clone never mutates p.
func (p *Pipeline) clone() *Pipeline {
	return &Pipeline{
		registry: p.registry,
		source:   p.source,
		actions:  append([]*actionDescriptor(nil), p.actions...),
	}
}

// NumActions returns the number of recorded descriptors.
func (p *Pipeline) NumActions() int { return len(p.actions) }

// Source returns the bound source, or nil.
func (p *Pipeline) Source() Source { return p.source }

// Registry returns the capability registry this pipeline validates
// action names against.
func (p *Pipeline) Registry() *Registry { return p.registry }

// ActionNames returns the recorded descriptor names in order. Nested
// descriptors and join markers appear under their marker names.
func (p *Pipeline) ActionNames() []string {
	names := make([]string, len(p.actions))
	for i, d := range p.actions {
		names[i] = d.name
	}
	return names
}

// Concat returns a new pipeline whose descriptor list is p's followed
// by q's. It fails if both pipelines are bound to distinct sources.
func Concat(p, q *Pipeline) (*Pipeline, error) {
	if p.source != nil && q.source != nil && p.source != q.source {
		return nil, errors.IncompatibleSource()
	}
	out := p.clone()
	out.actions = append(out.actions, q.actions...)
	if out.source == nil {
		out.source = q.source
	}
	if out.registry == nil {
		out.registry = q.registry
	}
	return out, nil
}

// Append records one capability invocation. The call is lazy: nothing
// executes until the pipeline runs. It fails if no registry variant
// knows the name.
func (p *Pipeline) Append(name string, args []any, kwargs map[string]any) (*Pipeline, error) {
	if p.registry == nil || !p.registry.Known(name) {
		return nil, errors.UnknownCapability(name)
	}
	out := p.clone()
	out.actions = append(out.actions, &actionDescriptor{name: name, args: args, kwargs: kwargs})
	return out, nil
}

// WithProbability gates the pipeline's trailing action with a Bernoulli
// trial. A probability of 1 is normalized to "always fire". If the
// pipeline has a single action whose repeat count is unset, the
// probability composes multiplicatively into that action; otherwise the
// whole pipeline is wrapped as one nested action gated by proba.
func (p *Pipeline) WithProbability(proba float64) (*Pipeline, error) {
	if len(p.actions) == 0 {
		return nil, errors.EmptyPipeline("WithProbability")
	}
	if math.IsNaN(proba) || proba < 0 || proba > 1 {
		return nil, errors.InvalidProbability(proba)
	}
	if proba == 1 {
		return p.clone(), nil
	}
	if len(p.actions) == 1 && p.actions[0].repeat == nil && !p.actions[0].isJoin() {
		out := p.clone()
		last := *out.actions[0]
		last.proba = multProba(&proba, last.proba)
		out.actions[0] = &last
		return out, nil
	}
	return p.wrapNested(&proba, nil), nil
}

// WithRepeat applies the pipeline's trailing action n times per firing
// decision. If the pipeline has a single action whose probability is
// unset, the count composes multiplicatively into that action;
// otherwise the whole pipeline is wrapped as one nested action repeated
// n times.
func (p *Pipeline) WithRepeat(n int) (*Pipeline, error) {
	if len(p.actions) == 0 {
		return nil, errors.EmptyPipeline("WithRepeat")
	}
	if n < 0 {
		return nil, errors.NegativeRepeat(n)
	}
	if len(p.actions) == 1 && p.actions[0].proba == nil && !p.actions[0].isJoin() {
		out := p.clone()
		last := *out.actions[0]
		last.repeat = multRepeat(&n, last.repeat)
		out.actions[0] = &last
		return out, nil
	}
	return p.wrapNested(nil, &n), nil
}

// wrapNested returns a fresh pipeline holding p as a single nested
// action with the given gates.
func (p *Pipeline) wrapNested(proba *float64, repeat *int) *Pipeline {
	out := New(p.registry, p.source)
	out.actions = []*actionDescriptor{{name: nestedID, inner: p, proba: proba, repeat: repeat}}
	return out
}

// BindSource returns p with its source replaced. Descriptors are
// unchanged.
func (p *Pipeline) BindSource(source Source) (*Pipeline, error) {
	if source == nil {
		return nil, errors.InvalidInput("source", "pipelines may only bind a non-nil Source")
	}
	out := p.clone()
	out.source = source
	return out, nil
}

// NestedOption configures a nested-pipeline descriptor.
type NestedOption func(*actionDescriptor)

// WithNestedProbability gates the nested pipeline with one Bernoulli
// trial per visit.
func WithNestedProbability(proba float64) NestedOption {
	return func(d *actionDescriptor) { d.proba = &proba }
}

// WithNestedRepeat runs the nested pipeline n times per firing
// decision.
func WithNestedRepeat(n int) NestedOption {
	return func(d *actionDescriptor) { d.repeat = &n }
}

// AppendPipeline records inner as one atomic nested action. The inner
// pipeline is referenced, not copied; pipelines are treated as
// immutable once composed, so sharing is safe.
func (p *Pipeline) AppendPipeline(inner *Pipeline, opts ...NestedOption) (*Pipeline, error) {
	d := &actionDescriptor{name: nestedID, inner: inner}
	for _, opt := range opts {
		opt(d)
	}
	if d.proba != nil && (math.IsNaN(*d.proba) || *d.proba < 0 || *d.proba > 1) {
		return nil, errors.InvalidProbability(*d.proba)
	}
	if d.repeat != nil && *d.repeat < 0 {
		return nil, errors.NegativeRepeat(*d.repeat)
	}
	out := p.clone()
	out.actions = append(out.actions, d)
	return out, nil
}

// Join appends a join marker for the given sources. At execution time
// the next ordinary action receives one freshly created batch per
// source, prepended to its positional arguments. A marker not followed
// by an ordinary action is a no-op.
func (p *Pipeline) Join(sources ...Source) *Pipeline {
	out := p.clone()
	out.actions = append(out.actions, &actionDescriptor{name: joinID, joined: sources})
	return out
}
