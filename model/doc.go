// Package model holds the data model shared by every modelstore package:
// actions, modules, state snapshots, dispatch results and the error taxonomy.
//
// A module is addressed by its namespace. Once registered, its reducers and
// effects answer to qualified action types of the form "{namespace}/{key}":
//
//	count := model.Module{
//	    Namespace: "count",
//	    State:     0,
//	    Reducers: map[string]model.Reducer{
//	        "add": func(state any, a model.Action) any { return state.(int) + a.Payload.(int) },
//	    },
//	}
//
// Dispatching {Type: "count/add", Payload: 2} then folds the reducer over the
// "count" slice of the state tree.
package model
