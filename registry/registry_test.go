package registry_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countModule() model.Module {
	return model.Module{
		Namespace: "count",
		State:     0,
		Reducers: map[string]model.Reducer{
			"add": func(state any, a model.Action) any { return state.(int) + a.Payload.(int) },
		},
		Effects: map[string]model.EffectFn{
			"addDelay": func(context.Context, model.EffectContext, model.Action) (any, error) { return nil, nil },
		},
	}
}

func TestAdd_ValidatesNamespace(t *testing.T) {
	r := registry.New()

	_, err := r.Add(model.Module{})
	assert.ErrorIs(t, err, model.ErrInvalidNamespace)

	_, err = r.Add(model.Module{Namespace: "a/b"})
	assert.ErrorIs(t, err, model.ErrInvalidNamespace)

	assert.Empty(t, r.Namespaces())
}

func TestAdd_Duplicate(t *testing.T) {
	r := registry.New()
	_, err := r.Add(countModule())
	require.NoError(t, err)

	_, err = r.Add(model.Module{Namespace: "count", State: 100})
	var dup *model.DuplicateNamespaceError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "count", dup.Namespace)

	e, ok := r.Get("count")
	require.True(t, ok)
	assert.Equal(t, 0, e.Module.State, "the first registration is kept")
}

func TestAdd_DoesNotShareCallerMaps(t *testing.T) {
	r := registry.New()
	m := countModule()
	_, err := r.Add(m)
	require.NoError(t, err)

	delete(m.Effects, "addDelay")
	_, fn, ok := r.Effect("count/addDelay")
	assert.True(t, ok)
	assert.NotNil(t, fn)
}

func TestEffect_QualifiedLookupOnly(t *testing.T) {
	r := registry.New()
	_, err := r.Add(countModule())
	require.NoError(t, err)

	m, fn, ok := r.Effect("count/addDelay")
	require.True(t, ok)
	assert.NotNil(t, fn)
	assert.Equal(t, "count", m.Namespace)

	_, _, ok = r.Effect("addDelay")
	assert.False(t, ok)
	_, _, ok = r.Effect("count/add")
	assert.False(t, ok, "reducers are not effects")
}

func TestRemove_UnknownSuggestsClosest(t *testing.T) {
	r := registry.New()
	_, err := r.Add(countModule())
	require.NoError(t, err)

	_, err = r.Remove("cout")
	var unknown *model.UnknownNamespaceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "count", unknown.Suggestion)

	_, err = r.Remove("somethingelse")
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
}

func TestRemove_DropsEffectsAndKeepsOrder(t *testing.T) {
	r := registry.New()
	for _, ns := range []string{"a", "b", "c"} {
		_, err := r.Add(model.Module{Namespace: ns})
		require.NoError(t, err)
	}
	_, err := r.Add(countModule())
	require.NoError(t, err)

	e, err := r.Remove("count")
	require.NoError(t, err)
	assert.Equal(t, "count", e.Module.Namespace)

	_, _, ok := r.Effect("count/addDelay")
	assert.False(t, ok)

	_, err = r.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, r.Namespaces())
}

func TestGeneration_DetectsStaleRegistration(t *testing.T) {
	r := registry.New()
	first, err := r.Add(countModule())
	require.NoError(t, err)
	assert.True(t, r.Current("count", first.Generation))

	_, err = r.Remove("count")
	require.NoError(t, err)
	second, err := r.Add(countModule())
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.False(t, r.Current("count", first.Generation))
	assert.False(t, r.AttachTeardowns("count", first.Generation, map[string]model.Teardown{"x": func() {}}))
	assert.True(t, r.AttachTeardowns("count", second.Generation, map[string]model.Teardown{"x": func() {}}))

	e, _ := r.Get("count")
	assert.Len(t, e.Teardowns, 1)
}

func TestModuleReducer(t *testing.T) {
	reduce := registry.ModuleReducer(countModule())

	assert.Equal(t, 3, reduce(1, model.Action{Type: "count/add", Payload: 2}))
	assert.Equal(t, 1, reduce(1, model.Action{Type: "add", Payload: 2}), "bare types are not routed")
	assert.Equal(t, 1, reduce(1, model.Action{Type: "other/add", Payload: 2}))
	assert.Equal(t, 1, reduce(1, model.Action{Type: "count/missing"}))

	r := registry.New()
	_, err := r.Add(countModule())
	require.NoError(t, err)
	assert.Contains(t, r.Reducers(), "count")
}
