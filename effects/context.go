package effects

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/modelstore/model"
	"go.uber.org/zap"
)

var _ model.EffectContext = (*effectContext)(nil)

// effectContext is owned by a single effect invocation.
type effectContext struct {
	id         string
	namespace  string
	actionType string

	dispatch model.DispatchFunc
	getState func() model.State
	mw       *Middleware

	mu     sync.RWMutex
	values map[any]any
}

func newEffectContext(mw *Middleware, api model.MiddlewareAPI, namespace, actionType string) *effectContext {
	return &effectContext{
		id:         uuid.New().String(),
		namespace:  namespace,
		actionType: actionType,
		dispatch:   api.Dispatch,
		getState:   api.GetState,
		mw:         mw,
	}
}

func (ec *effectContext) ID() string        { return ec.id }
func (ec *effectContext) Namespace() string { return ec.namespace }
func (ec *effectContext) Type() string      { return ec.actionType }

func (ec *effectContext) Dispatch(ctx context.Context, action model.Action) <-chan model.Result {
	action = model.Inner(model.QualifyIfBare(ec.namespace, action))
	return ec.dispatch(ctx, action)
}

func (ec *effectContext) Put(ctx context.Context, action model.Action) <-chan model.Result {
	if ec.mw.prefixWarning && strings.HasPrefix(action.Type, ec.namespace+model.NamespaceSep) {
		ec.mw.warn(model.NamespacePrefixWarning{Namespace: ec.namespace, Type: action.Type})
	}
	ec.mw.logger.Debug("put is deprecated, use dispatch",
		zap.String("effect", ec.actionType),
		zap.String("type", action.Type),
	)
	return ec.Dispatch(ctx, action)
}

func (ec *effectContext) Select(selector func(model.State) any) any {
	return selector(ec.getState())
}

func (ec *effectContext) GetState() model.State {
	return ec.getState()
}

func (ec *effectContext) Value(key any) any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.values[key]
}

func (ec *effectContext) SetValue(key, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.values == nil {
		ec.values = make(map[any]any)
	}
	ec.values[key] = value
}
