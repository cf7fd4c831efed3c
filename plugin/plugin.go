// Package plugin is the ordered registry of hooks contributed by plugins.
//
// The set of hook kinds is closed. Each kind has a fixed function signature and is
// stored in registration order.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/on-the-ground/modelstore/model"
)

type HookName string

const (
	OnError        HookName = "onError"
	OnAction       HookName = "onAction"
	OnHmr          HookName = "onHmr"
	OnEffect       HookName = "onEffect"
	OnReducer      HookName = "onReducer"
	OnStateChange  HookName = "onStateChange"
	ExtraReducers  HookName = "extraReducers"
	ExtraEnhancers HookName = "extraEnhancers"
)

// ErrDuplicateExtraReducer is returned when two plugins contribute the same state slice.
var ErrDuplicateExtraReducer = errors.New("extra reducer already registered")

type (
	// ErrorHook receives effect failures. Calling err.PreventDefault suppresses the
	// failure for the dispatch caller. action is the action that triggered the effect.
	ErrorHook func(err *model.EffectError, dispatch model.DispatchFunc, action model.Action)

	// ActionHook observes every action before it reaches the dispatch chain.
	ActionHook func(ctx context.Context, action model.Action, getState func() model.State)

	// HmrHook receives the module replacement entry point once the runtime has started.
	HmrHook func(replace func(model.Module) error)

	// EffectHook wraps an effect. The returned function replaces effect for this invocation.
	EffectHook func(effect model.EffectFn, ec model.EffectContext, m model.Module, actionType string) model.EffectFn

	// ReducerHook wraps the combined root reducer.
	ReducerHook func(next model.RootReducer) model.RootReducer

	// StateChangeHook is called after every published state change.
	StateChangeHook func(state model.State)

	// Enhancer wraps the dispatch chain.
	Enhancer func(next model.DispatchFunc) model.DispatchFunc
)

// ExtraReducer contributes a state slice that is not owned by any module.
type ExtraReducer struct {
	State   any
	Reducer model.Reducer
}

// Hooks is the set of hooks a plugin contributes. Nil fields are skipped.
type Hooks struct {
	OnError       ErrorHook
	OnAction      ActionHook
	OnHmr         HmrHook
	OnEffect      EffectHook
	OnReducer     ReducerHook
	OnStateChange StateChangeHook

	ExtraReducers  map[string]ExtraReducer
	ExtraEnhancers []Enhancer
}

// Registry stores hooks per kind in registration order. It is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	hooks         map[HookName][]any
	extraReducers map[string]ExtraReducer
}

func NewRegistry() *Registry {
	return &Registry{
		hooks:         make(map[HookName][]any),
		extraReducers: make(map[string]ExtraReducer),
	}
}

// Use appends the non-nil hooks of h. Nothing is appended when an extra reducer key
// collides with an existing one.
func (r *Registry) Use(h Hooks) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range h.ExtraReducers {
		if _, ok := r.extraReducers[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateExtraReducer, key)
		}
	}

	if h.OnError != nil {
		r.hooks[OnError] = append(r.hooks[OnError], h.OnError)
	}
	if h.OnAction != nil {
		r.hooks[OnAction] = append(r.hooks[OnAction], h.OnAction)
	}
	if h.OnHmr != nil {
		r.hooks[OnHmr] = append(r.hooks[OnHmr], h.OnHmr)
	}
	if h.OnEffect != nil {
		r.hooks[OnEffect] = append(r.hooks[OnEffect], h.OnEffect)
	}
	if h.OnReducer != nil {
		r.hooks[OnReducer] = append(r.hooks[OnReducer], h.OnReducer)
	}
	if h.OnStateChange != nil {
		r.hooks[OnStateChange] = append(r.hooks[OnStateChange], h.OnStateChange)
	}
	for key, er := range h.ExtraReducers {
		r.extraReducers[key] = er
	}
	for _, e := range h.ExtraEnhancers {
		if e != nil {
			r.hooks[ExtraEnhancers] = append(r.hooks[ExtraEnhancers], e)
		}
	}
	return nil
}

// Apply returns the last registered hook of kind name, or def when there is none.
func Apply[F any](r *Registry, name HookName, def F) F {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := r.hooks[name]
	for i := len(hooks) - 1; i >= 0; i-- {
		if fn, ok := hooks[i].(F); ok {
			return fn
		}
	}
	return def
}

// Get returns the hooks of kind name in registration order.
func Get[F any](r *Registry, name HookName) []F {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := r.hooks[name]
	out := make([]F, 0, len(hooks))
	for _, h := range hooks {
		if fn, ok := h.(F); ok {
			out = append(out, fn)
		}
	}
	return out
}

// ExtraReducers returns a copy of the contributed state slices.
func (r *Registry) ExtraReducers() map[string]ExtraReducer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ExtraReducer, len(r.extraReducers))
	for k, v := range r.extraReducers {
		out[k] = v
	}
	return out
}

// Enhancers returns the dispatch enhancers in registration order.
func (r *Registry) Enhancers() []Enhancer {
	return Get[Enhancer](r, ExtraEnhancers)
}

// WrapEffect folds the OnEffect hooks around effect so the first registered hook is the
// outermost one.
func (r *Registry) WrapEffect(effect model.EffectFn, ec model.EffectContext, m model.Module, actionType string) model.EffectFn {
	hooks := Get[EffectHook](r, OnEffect)
	for i := len(hooks) - 1; i >= 0; i-- {
		effect = hooks[i](effect, ec, m, actionType)
	}
	return effect
}

// WrapReducer folds the OnReducer hooks around root, first registered outermost.
func (r *Registry) WrapReducer(root model.RootReducer) model.RootReducer {
	hooks := Get[ReducerHook](r, OnReducer)
	for i := len(hooks) - 1; i >= 0; i-- {
		root = hooks[i](root)
	}
	return root
}

// Enhance folds the enhancers around dispatch, first registered outermost.
func (r *Registry) Enhance(dispatch model.DispatchFunc) model.DispatchFunc {
	enhancers := r.Enhancers()
	for i := len(enhancers) - 1; i >= 0; i-- {
		dispatch = enhancers[i](dispatch)
	}
	return dispatch
}
