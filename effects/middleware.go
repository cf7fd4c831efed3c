// Package effects routes qualified actions to module effects.
//
// An effect runs in its own goroutine. The dispatch result channel receives the effect's
// return value, or its error when no error hook suppressed it. Hooks registered under
// plugin.OnEffect wrap every top-level invocation; actions dispatched from inside an
// effect run unwrapped.
package effects

import (
	"context"

	"github.com/on-the-ground/modelstore/internal/supervisor"
	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"github.com/on-the-ground/modelstore/registry"
	"go.uber.org/zap"
)

// Warner receives advisory warnings.
type Warner func(w model.NamespacePrefixWarning)

type Config struct {
	Registry   *registry.Registry
	Hooks      *plugin.Registry
	Supervisor *supervisor.Supervisor
	Logger     *zap.Logger

	// Warner defaults to a zap warning.
	Warner Warner
	// PrefixWarning enables model.NamespacePrefixWarning on Put.
	PrefixWarning bool
}

type Middleware struct {
	registry      *registry.Registry
	hooks         *plugin.Registry
	sv            *supervisor.Supervisor
	logger        *zap.Logger
	warner        Warner
	prefixWarning bool
}

func New(cfg Config) *Middleware {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sv := cfg.Supervisor
	if sv == nil {
		sv = supervisor.New(logger)
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = plugin.NewRegistry()
	}
	return &Middleware{
		registry:      cfg.Registry,
		hooks:         hooks,
		sv:            sv,
		logger:        logger,
		warner:        cfg.Warner,
		prefixWarning: cfg.PrefixWarning,
	}
}

func (mw *Middleware) warn(w model.NamespacePrefixWarning) {
	if mw.warner != nil {
		mw.warner(w)
		return
	}
	mw.logger.Warn(w.Error(),
		zap.String("namespace", w.Namespace),
		zap.String("type", w.Type),
	)
}

// Wrap installs the middleware in front of next. api.Dispatch must be the fully composed
// dispatch so that actions dispatched from effects go through every middleware again.
func (mw *Middleware) Wrap(api model.MiddlewareAPI) func(next model.DispatchFunc) model.DispatchFunc {
	return func(next model.DispatchFunc) model.DispatchFunc {
		return func(ctx context.Context, action model.Action) <-chan model.Result {
			m, effect, ok := mw.registry.Effect(action.Type)
			if !ok || effect == nil {
				return next(ctx, action)
			}

			ec := newEffectContext(mw, api, m.Namespace, action.Type)
			resultCh := make(chan model.Result, 1)
			mw.sv.Go(ctx, action.Type, func(ctx context.Context) {
				defer close(resultCh)
				v, err := mw.invoke(ctx, api, ec, m, effect, action)
				resultCh <- model.Result{Value: v, Err: err}
			})
			return resultCh
		}
	}
}

func (mw *Middleware) invoke(
	ctx context.Context,
	api model.MiddlewareAPI,
	ec *effectContext,
	m model.Module,
	effect model.EffectFn,
	action model.Action,
) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, model.AsError(r)
		}
		if err != nil {
			v, err = mw.funnel(err, api.Dispatch, action)
		}
	}()

	if !action.IsInner() {
		effect = mw.hooks.WrapEffect(effect, ec, m, action.Type)
	}
	return effect(ctx, ec, action)
}

// funnel hands a failure to the error hook. A prevented failure settles the dispatch
// with no value and no error.
func (mw *Middleware) funnel(err error, dispatch model.DispatchFunc, action model.Action) (any, error) {
	onError := plugin.Apply[plugin.ErrorHook](mw.hooks, plugin.OnError, nil)
	if onError == nil {
		mw.logger.Debug("effect failed", zap.String("type", action.Type), zap.Error(err))
		return nil, err
	}

	ee := model.NewEffectError(err, action)
	func() {
		defer func() {
			if r := recover(); r != nil {
				mw.logger.Error("panic in error hook",
					zap.String("type", action.Type),
					zap.Any("error", r),
				)
			}
		}()
		onError(ee, dispatch, action)
	}()

	if ee.Prevented() {
		return nil, nil
	}
	return nil, err
}

// WaitIdle blocks until no effect is running or ctx is done.
func (mw *Middleware) WaitIdle(ctx context.Context) error {
	return mw.sv.Wait(ctx)
}

// InFlight returns the number of running effects.
func (mw *Middleware) InFlight() int {
	return mw.sv.InFlight()
}
