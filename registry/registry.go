// Package registry keeps the registered modules and their reducer and effect tables.
package registry

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/on-the-ground/modelstore/model"
)

// maxSuggestionDistance bounds the edit distance of a "did you mean" suggestion.
const maxSuggestionDistance = 2

// Entry is a registered module. Generation changes every time the namespace is
// registered again, so handles taken on an older registration can detect staleness.
type Entry struct {
	Module     model.Module
	Generation uint64
	Teardowns  map[string]model.Teardown
}

type Registry struct {
	mu sync.RWMutex

	entries map[string]*Entry
	order   []string
	effects map[string]string
	nextGen uint64
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		effects: make(map[string]string),
	}
}

// ValidateNamespace rejects empty namespaces and namespaces containing model.NamespaceSep.
func ValidateNamespace(ns string) error {
	if ns == "" || strings.Contains(ns, model.NamespaceSep) {
		return model.ErrInvalidNamespace
	}
	return nil
}

// Add registers a copy of m. The registry is left unchanged on error.
func (r *Registry) Add(m model.Module) (Entry, error) {
	if err := ValidateNamespace(m.Namespace); err != nil {
		return Entry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[m.Namespace]; ok {
		return Entry{}, &model.DuplicateNamespaceError{Namespace: m.Namespace}
	}

	r.nextGen++
	e := &Entry{
		Module:     m.Clone(),
		Generation: r.nextGen,
	}
	r.entries[m.Namespace] = e
	r.order = append(r.order, m.Namespace)
	for key := range e.Module.Effects {
		r.effects[model.Qualify(m.Namespace, key)] = m.Namespace
	}
	return *e, nil
}

// Remove unregisters ns and returns the removed entry with its teardowns.
func (r *Registry) Remove(ns string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ns]
	if !ok {
		return Entry{}, &model.UnknownNamespaceError{
			Namespace:  ns,
			Suggestion: r.suggest(ns),
		}
	}

	delete(r.entries, ns)
	for i, name := range r.order {
		if name == ns {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	for key := range e.Module.Effects {
		delete(r.effects, model.Qualify(ns, key))
	}
	return *e, nil
}

// suggest returns the closest registered namespace within maxSuggestionDistance.
func (r *Registry) suggest(ns string) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, name := range r.order {
		if d := levenshtein.ComputeDistance(ns, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}

// Get returns the entry registered under ns.
func (r *Registry) Get(ns string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ns]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Has reports whether ns is registered.
func (r *Registry) Has(ns string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[ns]
	return ok
}

// Current reports whether ns is still registered under generation.
func (r *Registry) Current(ns string, generation uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ns]
	return ok && e.Generation == generation
}

// AttachTeardowns records the teardowns of a registration. It reports false if the
// registration is no longer current.
func (r *Registry) AttachTeardowns(ns string, generation uint64, teardowns map[string]model.Teardown) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ns]
	if !ok || e.Generation != generation {
		return false
	}
	e.Teardowns = teardowns
	return true
}

// Effect looks up the effect handling a qualified action type.
func (r *Registry) Effect(actionType string) (model.Module, model.EffectFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ns, ok := r.effects[actionType]
	if !ok {
		return model.Module{}, nil, false
	}
	e := r.entries[ns]
	_, key, _ := model.SplitType(actionType)
	return e.Module, e.Module.Effects[key], true
}

// Namespaces returns the registered namespaces in registration order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entries returns the registered entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, ns := range r.order {
		out = append(out, *r.entries[ns])
	}
	return out
}

// Reducers returns one reducer per registered namespace.
func (r *Registry) Reducers() map[string]model.Reducer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.Reducer, len(r.entries))
	for ns, e := range r.entries {
		out[ns] = ModuleReducer(e.Module)
	}
	return out
}

// ModuleReducer dispatches "{namespace}/{key}" actions to m.Reducers[key] and returns
// the state unchanged for every other action.
func ModuleReducer(m model.Module) model.Reducer {
	reducers := m.Reducers
	return func(state any, action model.Action) any {
		ns, key, ok := model.SplitType(action.Type)
		if !ok || ns != m.Namespace {
			return state
		}
		if reduce, ok := reducers[key]; ok && reduce != nil {
			return reduce(state, action)
		}
		return state
	}
}
