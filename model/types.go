package model

import "context"

// State is a snapshot of the combined state tree, keyed by namespace or extra-reducer slice.
//
// A State is never mutated after it has been published. Every state change produces a new
// map, so a snapshot obtained earlier stays valid.
type State map[string]any

// Get returns the slice stored under key.
func (s State) Get(key string) any {
	return s[key]
}

// Clone returns a shallow copy of the snapshot.
func (s State) Clone() State {
	c := make(State, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Reducer is a synchronous, pure state transition. It must never block.
type Reducer func(state any, action Action) any

// RootReducer transforms the whole state tree.
type RootReducer func(state State, action Action) State

// Result is the settled outcome of a dispatch.
type Result struct {
	Value any
	Err   error
}

// DispatchFunc dispatches an action. The returned channel receives exactly one Result
// and is then closed.
type DispatchFunc func(ctx context.Context, action Action) <-chan Result

// MiddlewareAPI is the surface a middleware gets from the store it is installed on.
// Dispatch always refers to the fully composed dispatch.
type MiddlewareAPI struct {
	Dispatch DispatchFunc
	GetState func() State
}

// EffectFn is the asynchronous handler of a qualified action.
type EffectFn func(ctx context.Context, ec EffectContext, action Action) (any, error)

// EffectContext is created per effect invocation and owned by it.
type EffectContext interface {
	// ID identifies this invocation.
	ID() string
	// Namespace is the namespace of the module owning the effect.
	Namespace() string
	// Type is the qualified action type that triggered the effect.
	Type() string

	// Dispatch qualifies bare action types with Namespace and sends them through the
	// full dispatch path.
	Dispatch(ctx context.Context, action Action) <-chan Result
	// Put is an alias of Dispatch.
	//
	// Deprecated: use Dispatch.
	Put(ctx context.Context, action Action) <-chan Result

	Select(selector func(State) any) any
	GetState() State

	// Value returns a field contributed by a hook, nil if absent.
	Value(key any) any
	// SetValue contributes a field to this invocation.
	SetValue(key, value any)
}

// Teardown releases what a subscription set up.
type Teardown func()

// SubscriptionAPI is handed to subscription setup functions.
type SubscriptionAPI struct {
	Namespace string
	// Dispatch qualifies bare action types with Namespace.
	Dispatch DispatchFunc
}

// SetupFn runs once per registration. A nil Teardown is allowed.
type SetupFn func(api SubscriptionAPI) Teardown

// Module is a namespaced unit of state, reducers, effects and subscriptions.
type Module struct {
	Namespace     string
	State         any
	Reducers      map[string]Reducer
	Effects       map[string]EffectFn
	Subscriptions map[string]SetupFn
}

// Clone copies the module maps so the registry never shares them with the caller.
func (m Module) Clone() Module {
	c := Module{Namespace: m.Namespace, State: m.State}
	if m.Reducers != nil {
		c.Reducers = make(map[string]Reducer, len(m.Reducers))
		for k, v := range m.Reducers {
			c.Reducers[k] = v
		}
	}
	if m.Effects != nil {
		c.Effects = make(map[string]EffectFn, len(m.Effects))
		for k, v := range m.Effects {
			c.Effects[k] = v
		}
	}
	if m.Subscriptions != nil {
		c.Subscriptions = make(map[string]SetupFn, len(m.Subscriptions))
		for k, v := range m.Subscriptions {
			c.Subscriptions[k] = v
		}
	}
	return c
}

// Settled returns an already-filled result channel.
func Settled(value any, err error) <-chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Value: value, Err: err}
	close(ch)
	return ch
}

// Await blocks until the dispatch settles or ctx is done. A result that is already
// settled is returned even when ctx is done.
func Await(ctx context.Context, resultCh <-chan Result) (any, error) {
	select {
	case res, ok := <-resultCh:
		return unpack(res, ok)
	default:
	}

	select {
	case res, ok := <-resultCh:
		return unpack(res, ok)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func unpack(res Result, ok bool) (any, error) {
	if !ok {
		return nil, ErrResultConsumed
	}
	return res.Value, res.Err
}
