package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/registry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RegisterModule adds m to the runtime. When it returns, the state tree holds the module
// slice and, if the runtime is started, every subscription has run its setup once.
// Subscription setups must not register or unregister modules.
func (r *Runtime) RegisterModule(m model.Module) error {
	entry, started, err := r.add(m)
	if err != nil {
		return err
	}
	r.logger.Debug("module registered",
		zap.String("namespace", m.Namespace),
		zap.Uint64("generation", entry.Generation),
	)
	if started {
		r.setup(entry)
	}
	return nil
}

// add reports whether the runtime was started when m was added. Modules added before
// Start are set up by Start.
func (r *Runtime) add(m model.Module) (registry.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.hooks.ExtraReducers()[m.Namespace]; ok {
		return registry.Entry{}, false, &model.DuplicateNamespaceError{Namespace: m.Namespace}
	}
	entry, err := r.registry.Add(m)
	if err != nil {
		return registry.Entry{}, false, err
	}
	r.store.Reconfigure(r.rootReducerLocked(), func(st model.State) {
		if _, ok := st[m.Namespace]; !ok {
			st[m.Namespace] = entry.Module.State
		}
	})
	return entry, r.started.Load(), nil
}

// UnregisterModule runs the module teardowns and removes its reducers, effects and state
// slice. Teardown panics are recovered and returned.
func (r *Runtime) UnregisterModule(namespace string) error {
	r.mu.Lock()
	entry, err := r.registry.Remove(namespace)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.store.Reconfigure(r.rootReducerLocked(), func(st model.State) {
		delete(st, namespace)
	})
	r.mu.Unlock()

	r.logger.Debug("module unregistered", zap.String("namespace", namespace))
	return r.teardown(namespace, entry.Teardowns)
}

// ReplaceModule swaps the module registered under m.Namespace for m, keeping the current
// state slice. It registers m when the namespace is unknown.
func (r *Runtime) ReplaceModule(m model.Module) error {
	if !r.started.Load() {
		return model.ErrNotStarted
	}
	if err := registry.ValidateNamespace(m.Namespace); err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.hooks.ExtraReducers()[m.Namespace]; ok {
		r.mu.Unlock()
		return &model.DuplicateNamespaceError{Namespace: m.Namespace}
	}
	old, err := r.registry.Remove(m.Namespace)
	replaced := err == nil
	entry, err := r.registry.Add(m)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.store.Reconfigure(r.rootReducerLocked(), func(st model.State) {
		if _, ok := st[m.Namespace]; !ok {
			st[m.Namespace] = entry.Module.State
		}
	})
	r.mu.Unlock()

	var teardownErr error
	if replaced {
		teardownErr = r.teardown(m.Namespace, old.Teardowns)
	}
	r.logger.Debug("module replaced",
		zap.String("namespace", m.Namespace),
		zap.Bool("existed", replaced),
		zap.Uint64("generation", entry.Generation),
	)
	r.setup(entry)
	return teardownErr
}

// setup runs the subscription setups of a registration in name order and records their
// teardowns. Teardowns of a registration that went stale meanwhile run right away.
func (r *Runtime) setup(entry registry.Entry) {
	ns := entry.Module.Namespace
	api := model.SubscriptionAPI{
		Namespace: ns,
		Dispatch:  r.subscriptionDispatch(ns, entry.Generation),
	}

	names := make([]string, 0, len(entry.Module.Subscriptions))
	for name := range entry.Module.Subscriptions {
		names = append(names, name)
	}
	slices.Sort(names)

	teardowns := make(map[string]model.Teardown, len(names))
	for _, name := range names {
		if td := r.runSetup(ns, name, entry.Module.Subscriptions[name], api); td != nil {
			teardowns[name] = td
		}
	}

	if !r.registry.AttachTeardowns(ns, entry.Generation, teardowns) {
		if err := r.teardown(ns, teardowns); err != nil {
			r.logger.Warn("teardown of stale subscriptions failed", zap.String("namespace", ns), zap.Error(err))
		}
	}
}

func (r *Runtime) runSetup(ns, name string, setup model.SetupFn, api model.SubscriptionAPI) (td model.Teardown) {
	if setup == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in subscription setup",
				zap.String("namespace", ns),
				zap.String("subscription", name),
				zap.Any("error", rec),
			)
			td = nil
		}
	}()
	return setup(api)
}

// subscriptionDispatch qualifies bare action types with ns. It turns inert once the
// registration it was created for is no longer current.
func (r *Runtime) subscriptionDispatch(ns string, generation uint64) model.DispatchFunc {
	return func(ctx context.Context, action model.Action) <-chan model.Result {
		if !r.registry.Current(ns, generation) {
			r.logger.Debug("dispatch from stale subscription dropped",
				zap.String("namespace", ns),
				zap.String("type", action.Type),
			)
			return model.Settled(nil, nil)
		}
		return r.Dispatch(ctx, model.QualifyIfBare(ns, action))
	}
}

// teardown runs every teardown, recovering and collecting panics.
func (r *Runtime) teardown(ns string, teardowns map[string]model.Teardown) error {
	names := make([]string, 0, len(teardowns))
	for name := range teardowns {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs error
	for _, name := range names {
		td := teardowns[name]
		if td == nil {
			continue
		}
		errs = multierr.Append(errs, r.runTeardown(ns, name, td))
	}
	return errs
}

func (r *Runtime) runTeardown(ns, name string, td model.Teardown) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("teardown %s/%s: %w", ns, name, model.AsError(rec))
			r.logger.Error("panic in subscription teardown",
				zap.String("namespace", ns),
				zap.String("subscription", name),
				zap.Error(err),
			)
		}
	}()
	td()
	return nil
}
