// Package runtime ties the module registry, the store, the effect middleware and the
// plugin hooks together.
//
//	rt := runtime.New()
//	_ = rt.RegisterModule(count)
//	_ = rt.Start()
//	v, err := model.Await(ctx, rt.Dispatch(ctx, model.Action{Type: "count/addDelay", Payload: 2}))
package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/on-the-ground/modelstore/config"
	"github.com/on-the-ground/modelstore/effects"
	"github.com/on-the-ground/modelstore/internal/supervisor"
	"github.com/on-the-ground/modelstore/log"
	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"github.com/on-the-ground/modelstore/registry"
	"github.com/on-the-ground/modelstore/store"
	"go.uber.org/zap"
)

type Option func(*Runtime)

// WithLogger overrides the logger built from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

func WithConfig(opts config.Options) Option {
	return func(r *Runtime) {
		r.opts = opts
	}
}

// WithInitialState seeds the state tree. A module registered later keeps the slice found
// under its namespace instead of its own initial state.
func WithInitialState(state model.State) Option {
	return func(r *Runtime) {
		r.initial = state.Clone()
	}
}

// WithWarner routes advisory warnings somewhere else than the logger.
func WithWarner(w effects.Warner) Option {
	return func(r *Runtime) {
		r.warner = w
	}
}

type Runtime struct {
	opts    config.Options
	logger  *zap.Logger
	initial model.State
	warner  effects.Warner

	// mu serializes registration and lifecycle changes.
	mu       sync.Mutex
	registry *registry.Registry
	hooks    *plugin.Registry
	sv       *supervisor.Supervisor
	mw       *effects.Middleware
	store    *store.Store

	started atomic.Bool
	chain   atomic.Pointer[model.DispatchFunc]
}

func New(opts ...Option) *Runtime {
	r := &Runtime{
		opts: config.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = newLogger(r.opts)
	}

	r.registry = registry.New()
	r.hooks = plugin.NewRegistry()
	r.sv = supervisor.New(r.logger)
	r.store = store.New(r.initial, nil)
	r.mw = effects.New(effects.Config{
		Registry:      r.registry,
		Hooks:         r.hooks,
		Supervisor:    r.sv,
		Logger:        r.logger,
		Warner:        r.warner,
		PrefixWarning: r.opts.NamespacePrefixWarning,
	})

	r.store.Subscribe(func(_ uint64, state model.State) {
		for _, h := range plugin.Get[plugin.StateChangeHook](r.hooks, plugin.OnStateChange) {
			h(state)
		}
	})
	return r
}

// newLogger builds the logger described by opts. An invalid level falls back to info and
// is reported through the logger itself.
func newLogger(opts config.Options) *zap.Logger {
	level, levelErr := log.ParseLevel(opts.LogLevel)
	if levelErr != nil {
		level = log.LevelInfo
	}
	logger, err := log.New(level, opts.LogDevelopment)
	if err != nil {
		return zap.NewNop()
	}
	if levelErr != nil {
		logger.Warn("invalid log level, using info", zap.String("level", opts.LogLevel), zap.Error(levelErr))
	}
	return logger
}

// Logger returns the runtime logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

// Started reports whether Start has been called since the last Stop.
func (r *Runtime) Started() bool {
	return r.started.Load()
}

// UsePlugin registers a hook set. Extra reducers take effect immediately; their slice is
// seeded unless the state tree already holds one under the same key.
func (r *Runtime) UsePlugin(h plugin.Hooks) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range h.ExtraReducers {
		if r.registry.Has(key) {
			return &model.DuplicateNamespaceError{Namespace: key}
		}
	}
	if err := r.hooks.Use(h); err != nil {
		return err
	}

	r.store.Reconfigure(r.rootReducerLocked(), func(st model.State) {
		for key, er := range h.ExtraReducers {
			if _, ok := st[key]; !ok {
				st[key] = er.State
			}
		}
	})
	if r.started.Load() && len(h.ExtraEnhancers) > 0 {
		r.composeLocked()
	}
	r.logger.Debug("plugin registered", zap.Int("extraReducers", len(h.ExtraReducers)))
	return nil
}

// rootReducerLocked combines the module reducers and the extra reducers and wraps the
// result with the reducer hooks.
func (r *Runtime) rootReducerLocked() model.RootReducer {
	reducers := r.registry.Reducers()
	for key, er := range r.hooks.ExtraReducers() {
		if _, taken := reducers[key]; taken || er.Reducer == nil {
			continue
		}
		reducers[key] = er.Reducer
	}
	return r.hooks.WrapReducer(store.Combine(reducers))
}
