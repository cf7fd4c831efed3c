package runtime

import (
	"context"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"github.com/on-the-ground/modelstore/watch"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Start finalizes the dispatch chain, runs the subscription setups of the modules
// registered so far and hands ReplaceModule to the hot-reload hook. Calling Start again
// before Stop does nothing.
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.started.Load() {
		r.mu.Unlock()
		return nil
	}
	r.store.Reconfigure(r.rootReducerLocked(), nil)
	r.composeLocked()
	r.started.Store(true)
	entries := r.registry.Entries()
	r.mu.Unlock()

	for _, e := range entries {
		r.setup(e)
	}
	if hmr := plugin.Apply[plugin.HmrHook](r.hooks, plugin.OnHmr, nil); hmr != nil {
		hmr(r.ReplaceModule)
	}
	r.logger.Info("runtime started", zap.Strings("namespaces", r.registry.Namespaces()))
	return nil
}

// composeLocked builds the dispatch chain: the effect middleware in front of the
// enhancers, in front of the reducer.
func (r *Runtime) composeLocked() {
	core := func(_ context.Context, action model.Action) <-chan model.Result {
		if _, err := r.store.Apply(action); err != nil {
			r.logger.Error("reducer failed", zap.String("type", action.Type), zap.Error(err))
			return model.Settled(nil, err)
		}
		return model.Settled(action, nil)
	}
	api := model.MiddlewareAPI{
		Dispatch: r.Dispatch,
		GetState: r.store.GetState,
	}
	chain := r.mw.Wrap(api)(r.hooks.Enhance(core))
	r.chain.Store(&chain)
}

// Stop waits for in-flight effects, runs every teardown and resets the runtime to its
// unstarted state. Modules stay registered; a later Start sets them up again.
func (r *Runtime) Stop(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}
	waitErr := r.sv.Wait(ctx)

	r.mu.Lock()
	if !r.started.Load() {
		r.mu.Unlock()
		return waitErr
	}
	r.started.Store(false)
	r.chain.Store(nil)
	entries := r.registry.Entries()
	for _, e := range entries {
		r.registry.AttachTeardowns(e.Module.Namespace, e.Generation, nil)
	}
	r.mu.Unlock()

	errs := waitErr
	for _, e := range entries {
		errs = multierr.Append(errs, r.teardown(e.Module.Namespace, e.Teardowns))
	}
	r.logger.Info("runtime stopped", zap.Error(errs))
	return errs
}

// Dispatch sends action through the action hooks and the dispatch chain. The returned
// channel receives the effect result, or the action itself for reducer-only actions.
func (r *Runtime) Dispatch(ctx context.Context, action model.Action) <-chan model.Result {
	chain := r.chain.Load()
	if chain == nil {
		return model.Settled(nil, model.ErrNotStarted)
	}
	for _, h := range plugin.Get[plugin.ActionHook](r.hooks, plugin.OnAction) {
		h(ctx, action, r.store.GetState)
	}
	return (*chain)(ctx, action)
}

// GetState returns the current snapshot.
func (r *Runtime) GetState() model.State {
	return r.store.GetState()
}

// Subscribe calls listener after every state change until unsubscribe is called.
func (r *Runtime) Subscribe(listener func()) (unsubscribe func()) {
	return r.store.Subscribe(func(uint64, model.State) {
		listener()
	})
}

// Watch calls cb whenever the value selected from the state changes.
func (r *Runtime) Watch(
	selectFn func(model.State) any,
	cb watch.Callback,
	opts ...watch.Option,
) (unwatch func()) {
	version, state := r.store.Snapshot()
	w := watch.New(func() model.State { return state }, selectFn, cb, opts...)
	w.Seed(version)
	return r.store.SubscribeSince(version, w.Notify)
}

// WaitIdle blocks until no effect is running or ctx is done.
func (r *Runtime) WaitIdle(ctx context.Context) error {
	return r.mw.WaitIdle(ctx)
}

// Modules returns the registered modules in registration order.
func (r *Runtime) Modules() []model.Module {
	entries := r.registry.Entries()
	out := make([]model.Module, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Module)
	}
	return out
}
