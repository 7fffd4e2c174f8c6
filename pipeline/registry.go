package pipeline

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/util"
)

// CapabilityFunc applies one named operation to a batch and returns the
// resulting batch.
type CapabilityFunc func(ctx context.Context, b Batch, args []any, kwargs map[string]any) (Batch, error)

// Capability describes one registered batch operation.
type Capability struct {
	// Name is the operation name used in Append.
	Name string
	// Variant is the batch kind this capability is registered for.
	Variant string
	// Fn executes the operation.
	Fn CapabilityFunc
}

// Registry maps capability names to implementations per batch variant.
// Variants form a hierarchy: a lookup for a variant falls back to its
// parent chain, so capabilities registered on a base variant are
// available to all its specializations.
type Registry struct {
	mu      sync.RWMutex
	caps    map[string]map[string]Capability // variant -> name -> capability
	parents map[string]string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:    make(map[string]map[string]Capability),
		parents: make(map[string]string),
	}
}

// Register adds a capability for a batch variant.
func (r *Registry) Register(variant, name string, fn CapabilityFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.caps[variant]
	if !ok {
		byName = make(map[string]Capability)
		r.caps[variant] = byName
	}
	byName[name] = Capability{Name: name, Variant: variant, Fn: fn}
}

// RegisterVariant declares child as a specialization of parent.
func (r *Registry) RegisterVariant(child, parent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parents[child] = parent
}

// Known reports whether name is registered for any variant.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, byName := range r.caps {
		if _, ok := byName[name]; ok {
			return true
		}
	}
	return false
}

// Resolve finds the capability for a variant, walking up the variant's
// parent chain.
func (r *Registry) Resolve(variant, name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for v := variant; ; {
		if byName, ok := r.caps[v]; ok {
			if c, ok := byName[name]; ok {
				return c, true
			}
		}
		parent, ok := r.parents[v]
		if !ok {
			return Capability{}, false
		}
		v = parent
	}
}

// List returns sorted names of all registered capabilities.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, byName := range r.caps {
		for name := range byName {
			seen[name] = struct{}{}
		}
	}
	names := util.Keys(seen)
	sort.Strings(names)
	return names
}

// dispatch resolves name against the batch's variant chain and invokes
// it. A method that exists on the batch value but was never registered
// is a construction-time mistake and fails fatally, as does a name
// unknown to the batch's variant altogether.
func (r *Registry) dispatch(ctx context.Context, b Batch, name string, args []any, kwargs map[string]any) (Batch, error) {
	c, ok := r.Resolve(b.Kind(), name)
	if !ok {
		if hasMethod(b, name) {
			return nil, errors.CapabilityNotRegistered(name, b.Kind())
		}
		return nil, errors.MethodNotFound(name, b.Kind())
	}
	if c.Fn == nil {
		return nil, errors.CapabilityNotRegistered(name, b.Kind())
	}
	return c.Fn(ctx, b, args, kwargs)
}

// hasMethod reports whether the batch value has an exported method
// whose name matches the capability name (case-folded on the first
// rune, so "scaleBy" matches a ScaleBy method).
func hasMethod(b Batch, name string) bool {
	first, size := utf8.DecodeRuneInString(name)
	if size == 0 || first == utf8.RuneError {
		return false
	}
	exported := string(unicode.ToUpper(first)) + name[size:]
	return reflect.ValueOf(b).MethodByName(exported).IsValid()
}
