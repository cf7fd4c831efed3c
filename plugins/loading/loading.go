// Package loading tracks which effects are running in a dedicated state slice.
//
// The slice reports whether any effect is running, which namespaces have one running
// and which qualified effect types are running.
package loading

import (
	"context"
	"errors"
	"slices"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
)

// DefaultNamespace is the state key of the slice unless WithNamespace says otherwise.
const DefaultNamespace = "loading"

const (
	ShowType = "@@loading/show"
	HideType = "@@loading/hide"
)

// ErrAmbiguousFilter is returned when both WithOnly and WithExcept are given.
var ErrAmbiguousFilter = errors.New("loading: only and except are ambiguous")

// State is the loading slice.
type State struct {
	Global  bool
	Models  map[string]bool
	Effects map[string]bool
}

// Payload of ShowType and HideType actions.
type Payload struct {
	Namespace string
	Type      string
}

type options struct {
	namespace string
	only      []string
	except    []string
}

type Option func(*options)

func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithOnly restricts tracking to the given qualified effect types.
func WithOnly(types ...string) Option {
	return func(o *options) {
		o.only = append(o.only, types...)
	}
}

// WithExcept excludes the given qualified effect types from tracking.
func WithExcept(types ...string) Option {
	return func(o *options) {
		o.except = append(o.except, types...)
	}
}

// New returns the hooks of the loading plugin, ready for runtime.UsePlugin.
func New(opts ...Option) (plugin.Hooks, error) {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.only) > 0 && len(o.except) > 0 {
		return plugin.Hooks{}, ErrAmbiguousFilter
	}

	return plugin.Hooks{
		ExtraReducers: map[string]plugin.ExtraReducer{
			o.namespace: {State: Initial(), Reducer: Reduce},
		},
		OnEffect: o.wrap,
	}, nil
}

// Initial returns an empty loading slice.
func Initial() State {
	return State{
		Models:  map[string]bool{},
		Effects: map[string]bool{},
	}
}

func (o options) tracks(actionType string) bool {
	if len(o.only) > 0 {
		return slices.Contains(o.only, actionType)
	}
	return !slices.Contains(o.except, actionType)
}

func (o options) wrap(effect model.EffectFn, _ model.EffectContext, m model.Module, actionType string) model.EffectFn {
	if !o.tracks(actionType) {
		return effect
	}
	payload := Payload{Namespace: m.Namespace, Type: actionType}

	return func(ctx context.Context, ec model.EffectContext, action model.Action) (any, error) {
		<-ec.Dispatch(ctx, model.Action{Type: ShowType, Payload: payload})
		defer func() {
			<-ec.Dispatch(context.WithoutCancel(ctx), model.Action{Type: HideType, Payload: payload})
		}()
		return effect(ctx, ec, action)
	}
}

// Reduce applies ShowType and HideType actions to a loading slice. Other actions leave
// it untouched.
func Reduce(state any, action model.Action) any {
	if action.Type != ShowType && action.Type != HideType {
		return state
	}
	p, ok := action.Payload.(Payload)
	if !ok {
		return state
	}

	cur, ok := state.(State)
	if !ok {
		cur = Initial()
	}
	next := State{
		Models:  make(map[string]bool, len(cur.Models)+1),
		Effects: make(map[string]bool, len(cur.Effects)+1),
	}
	for k, v := range cur.Models {
		next.Models[k] = v
	}
	for k, v := range cur.Effects {
		next.Effects[k] = v
	}

	if action.Type == ShowType {
		next.Effects[p.Type] = true
		next.Models[p.Namespace] = true
		next.Global = true
		return next
	}

	next.Effects[p.Type] = false
	next.Models[p.Namespace] = anyRunning(next.Effects, p.Namespace)
	next.Global = false
	for _, running := range next.Models {
		if running {
			next.Global = true
			break
		}
	}
	return next
}

func anyRunning(effects map[string]bool, namespace string) bool {
	for t, running := range effects {
		if ns, _, ok := model.SplitType(t); ok && ns == namespace && running {
			return true
		}
	}
	return false
}
