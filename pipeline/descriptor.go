package pipeline

import "github.com/kbukum/batchkit/util"

// Marker names for descriptors that are not ordinary actions.
const (
	nestedID = "#_pipeline"
	joinID   = "#_join"
)

// actionDescriptor records one step of a pipeline: an ordinary
// capability invocation, a nested pipeline, or a join marker. Exactly
// one of the three forms is populated. Descriptors are immutable once
// another pipeline may reference them; composing operators replace the
// trailing descriptor with a modified copy instead of mutating it.
type actionDescriptor struct {
	name   string
	args   []any
	kwargs map[string]any

	// proba gates the whole descriptor with one Bernoulli trial per
	// visit. nil means always fire.
	proba *float64
	// repeat applies the descriptor this many times under a single
	// gating decision. nil means once.
	repeat *int

	// inner holds the referenced pipeline for nested descriptors.
	inner *Pipeline
	// joined holds the sources for join markers. The marker is consumed
	// by the next ordinary descriptor.
	joined []Source

	// sink forwards the batch to an external queue after the action
	// fires. nil if no sink is attached.
	sink *sinkState
}

func (d *actionDescriptor) isNested() bool { return d.name == nestedID }
func (d *actionDescriptor) isJoin() bool   { return d.name == joinID }

// repeatCount returns the effective repeat count, defaulting to one.
func (d *actionDescriptor) repeatCount() int {
	if d.repeat == nil {
		return 1
	}
	return *d.repeat
}

// multProba multiplies two optional probabilities, treating nil as
// "always fire".
func multProba(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return util.Ptr(*a * *b)
}

// multRepeat multiplies two optional repeat counts, treating nil as one.
func multRepeat(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return util.Ptr(*a * *b)
}
