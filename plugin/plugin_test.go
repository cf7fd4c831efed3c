package plugin_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_LastRegisteredWins(t *testing.T) {
	r := plugin.NewRegistry()

	var got []string
	def := plugin.ErrorHook(func(*model.EffectError, model.DispatchFunc, model.Action) { got = append(got, "default") })

	plugin.Apply(r, plugin.OnError, def)(nil, nil, model.Action{})
	assert.Equal(t, []string{"default"}, got)

	require.NoError(t, r.Use(plugin.Hooks{OnError: func(*model.EffectError, model.DispatchFunc, model.Action) { got = append(got, "first") }}))
	require.NoError(t, r.Use(plugin.Hooks{OnError: func(*model.EffectError, model.DispatchFunc, model.Action) { got = append(got, "second") }}))

	got = nil
	plugin.Apply(r, plugin.OnError, def)(nil, nil, model.Action{})
	assert.Equal(t, []string{"second"}, got)
}

func TestGet_PreservesRegistrationOrder(t *testing.T) {
	r := plugin.NewRegistry()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, r.Use(plugin.Hooks{
			OnAction: func(context.Context, model.Action, func() model.State) { order = append(order, i) },
		}))
	}

	for _, h := range plugin.Get[plugin.ActionHook](r, plugin.OnAction) {
		h(context.Background(), model.Action{}, nil)
	}
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Empty(t, plugin.Get[plugin.HmrHook](r, plugin.OnHmr))
}

func TestUse_DuplicateExtraReducer(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Use(plugin.Hooks{
		ExtraReducers: map[string]plugin.ExtraReducer{"loading": {State: false}},
	}))

	err := r.Use(plugin.Hooks{
		OnStateChange: func(model.State) {},
		ExtraReducers: map[string]plugin.ExtraReducer{"loading": {State: true}},
	})
	assert.ErrorIs(t, err, plugin.ErrDuplicateExtraReducer)
	assert.Empty(t, plugin.Get[plugin.StateChangeHook](r, plugin.OnStateChange), "a rejected hook set is not partially applied")
	assert.Equal(t, false, r.ExtraReducers()["loading"].State)
}

func TestWrapEffect_FirstRegisteredIsOutermost(t *testing.T) {
	r := plugin.NewRegistry()
	var trace []string

	wrapper := func(name string) plugin.EffectHook {
		return func(next model.EffectFn, _ model.EffectContext, _ model.Module, _ string) model.EffectFn {
			return func(ctx context.Context, ec model.EffectContext, a model.Action) (any, error) {
				trace = append(trace, name+"-before")
				v, err := next(ctx, ec, a)
				trace = append(trace, name+"-after")
				return v, err
			}
		}
	}
	require.NoError(t, r.Use(plugin.Hooks{OnEffect: wrapper("H1")}))
	require.NoError(t, r.Use(plugin.Hooks{OnEffect: wrapper("H2")}))

	base := func(context.Context, model.EffectContext, model.Action) (any, error) {
		trace = append(trace, "base")
		return "done", nil
	}

	v, err := r.WrapEffect(base, nil, model.Module{}, "count/add")(context.Background(), nil, model.Action{})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, []string{"H1-before", "H2-before", "base", "H2-after", "H1-after"}, trace)
}

func TestWrapReducerAndEnhance(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Use(plugin.Hooks{
		OnReducer: func(next model.RootReducer) model.RootReducer {
			return func(s model.State, a model.Action) model.State {
				out := next(s, a).Clone()
				out["wrapped"] = true
				return out
			}
		},
		ExtraEnhancers: []plugin.Enhancer{
			func(next model.DispatchFunc) model.DispatchFunc {
				return func(ctx context.Context, a model.Action) <-chan model.Result {
					a.Type = "enhanced/" + a.Type
					return next(ctx, a)
				}
			},
		},
	}))

	root := r.WrapReducer(func(s model.State, _ model.Action) model.State { return s })
	assert.Equal(t, model.State{"wrapped": true}, root(model.State{}, model.Action{}))

	dispatch := r.Enhance(func(_ context.Context, a model.Action) <-chan model.Result {
		return model.Settled(a.Type, nil)
	})
	v, err := model.Await(context.Background(), dispatch(context.Background(), model.Action{Type: "add"}))
	require.NoError(t, err)
	assert.Equal(t, "enhanced/add", v)
}
