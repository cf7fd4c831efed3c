package effects

import (
	"github.com/on-the-ground/modelstore/model"
	"github.com/on-the-ground/modelstore/shared/helper"
)

// SelectAs evaluates selector against the current state and asserts the result to T.
func SelectAs[T any](ec model.EffectContext, selector func(model.State) any) (T, error) {
	return helper.GetTypedValueOf[T](func() (any, error) {
		return ec.Select(selector), nil
	})
}

// ValueAs returns the hook-contributed field stored under key as a T.
func ValueAs[T any](ec model.EffectContext, key any) (T, bool) {
	return helper.GetTypedValueOf2[T](func() (any, bool) {
		v := ec.Value(key)
		return v, v != nil
	})
}
