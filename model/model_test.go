package model_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/on-the-ground/modelstore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifyIfBare(t *testing.T) {
	a := model.QualifyIfBare("count", model.Action{Type: "add"})
	assert.Equal(t, "count/add", a.Type)

	b := model.QualifyIfBare("count", model.Action{Type: "loading/show"})
	assert.Equal(t, "loading/show", b.Type, "qualified types are left untouched")
}

func TestSplitType(t *testing.T) {
	ns, key, ok := model.SplitType("count/add")
	assert.True(t, ok)
	assert.Equal(t, "count", ns)
	assert.Equal(t, "add", key)

	_, _, ok = model.SplitType("add")
	assert.False(t, ok)
}

func TestInnerTagIsACopy(t *testing.T) {
	a := model.Action{Type: "count/add"}
	inner := model.Inner(a)

	assert.True(t, inner.IsInner())
	assert.False(t, a.IsInner())
}

func TestModuleClone_DoesNotShareMaps(t *testing.T) {
	m := model.Module{
		Namespace: "count",
		Reducers:  map[string]model.Reducer{"add": func(s any, _ model.Action) any { return s }},
	}
	c := m.Clone()
	c.Reducers["sub"] = func(s any, _ model.Action) any { return s }

	assert.Len(t, m.Reducers, 1)
	assert.Len(t, c.Reducers, 2)
	assert.Nil(t, c.Effects)
}

func TestEffectError_PreventDefaultAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	ee := model.NewEffectError(cause, model.Action{Type: "count/addDelay"})

	assert.False(t, ee.Prevented())
	ee.PreventDefault()
	assert.True(t, ee.Prevented())
	assert.ErrorIs(t, ee, cause)
	assert.Contains(t, ee.Error(), "count/addDelay")
}

func TestUnknownNamespaceError_Suggestion(t *testing.T) {
	err := &model.UnknownNamespaceError{Namespace: "cout", Suggestion: "count"}
	assert.Equal(t, `unknown namespace "cout" (did you mean "count"?)`, err.Error())
}

func TestAsError(t *testing.T) {
	cause := errors.New("boom")
	assert.Same(t, cause, model.AsError(cause))

	var pe *model.PanicError
	require.ErrorAs(t, model.AsError("child boom"), &pe)
	assert.Equal(t, "child boom", pe.Value)
}

func TestAwait(t *testing.T) {
	ctx := context.Background()
	v, err := model.Await(ctx, model.Settled(3, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	ch := make(chan model.Result)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = model.Await(ctx, ch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwait_SettledResultWinsOverDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		v, err := model.Await(ctx, model.Settled(1, nil))
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}

	_, err := model.Await(ctx, make(chan model.Result))
	assert.ErrorIs(t, err, context.Canceled)
}
