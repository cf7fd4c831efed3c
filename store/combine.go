package store

import (
	"github.com/on-the-ground/modelstore/diff"
	"github.com/on-the-ground/modelstore/model"
)

// Combine builds a root reducer from per-key reducers. Each reducer sees only its own
// slice. Slices without a reducer are carried over as they are. The previous snapshot is
// returned when no slice changed.
func Combine(reducers map[string]model.Reducer) model.RootReducer {
	return func(state model.State, action model.Action) model.State {
		var next model.State
		for k, reduce := range reducers {
			if reduce == nil {
				continue
			}
			prev, ok := state[k]
			v := reduce(prev, action)
			if (ok && diff.Identical(prev, v)) || (!ok && v == nil) {
				continue
			}
			if next == nil {
				next = state.Clone()
			}
			next[k] = v
		}
		if next == nil {
			return state
		}
		return next
	}
}
