// Package diff compares state values for the change watcher.
//
// Two strategies are provided. Default reports the new value whenever it is not
// identical to the old one. Structural walks string-keyed maps and reports only
// what differs:
//
//	diff.Structural(
//	    map[string]any{"aaa": 111, "bbb": 222},
//	    map[string]any{"bbb": 222, "ccc": 333},
//	) // map[string]any{"aaa": diff.Removed, "ccc": 333}
//
// Both return NoChange when nothing differs.
package diff

import (
	"fmt"
	"reflect"
)

type marker struct {
	name string
}

func (m *marker) String() string {
	return m.name
}

var (
	// NoChange is returned by a CompareFunc when the values are considered equal.
	NoChange any = &marker{name: "diff.NoChange"}

	// Removed marks a key present in the old value and absent from the new one.
	Removed any = &marker{name: "diff.Removed"}
)

// CompareFunc returns NoChange or a description of how b differs from a.
type CompareFunc func(a, b any) any

// Strategy names a CompareFunc.
type Strategy string

const (
	StrategyDefault    Strategy = "default"
	StrategyStructural Strategy = "structural"
)

// ParseStrategy accepts "default", "structural" and its alias "deepdiff".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", string(StrategyDefault):
		return StrategyDefault, nil
	case string(StrategyStructural), "deepdiff":
		return StrategyStructural, nil
	default:
		return "", fmt.Errorf("unknown compare strategy: %q", s)
	}
}

// For returns the CompareFunc of a strategy, Default for unknown ones.
func For(s Strategy) CompareFunc {
	if s == StrategyStructural {
		return Structural
	}
	return Default
}

// Default is the strict-equality compare: b if it is not identical to a.
func Default(a, b any) any {
	if Identical(a, b) {
		return NoChange
	}
	return b
}

// Identical is strict equality. Maps, slices, funcs, channels and pointers are equal
// only when they share the same underlying reference; other values compare by value.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}

// Structural is the recursive compare described in the package documentation.
func Structural(a, b any) any {
	if Identical(a, b) {
		return NoChange
	}
	ma, okA := stringKeyed(a)
	mb, okB := stringKeyed(b)
	if okA && okB && ma.Type().Key() == mb.Type().Key() {
		if d := diffMaps(ma, mb); len(d) > 0 {
			return d
		}
		return NoChange
	}
	if isList(a) && isList(b) {
		if listEqual(reflect.ValueOf(b), reflect.ValueOf(a)) {
			return NoChange
		}
	}
	return b
}

func diffMaps(a, b reflect.Value) map[string]any {
	d := make(map[string]any)

	iter := b.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		newVal := iter.Value().Interface()

		oldRaw := a.MapIndex(iter.Key())
		if !oldRaw.IsValid() {
			d[key] = newVal
			continue
		}
		oldVal := oldRaw.Interface()

		if oldVal == nil || newVal == nil {
			if !Identical(oldVal, newVal) {
				d[key] = newVal
			}
			continue
		}
		if isList(newVal) {
			if !listEqual(reflect.ValueOf(newVal), reflect.ValueOf(oldVal)) {
				d[key] = newVal
			}
			continue
		}
		if _, ok := stringKeyed(newVal); ok {
			if _, ok := stringKeyed(oldVal); !ok {
				d[key] = newVal
				continue
			}
			if sub := Structural(oldVal, newVal); sub != NoChange {
				d[key] = sub
			}
			continue
		}
		if !Identical(oldVal, newVal) {
			d[key] = newVal
		}
	}

	iter = a.MapRange()
	for iter.Next() {
		if !b.MapIndex(iter.Key()).IsValid() {
			d[iter.Key().String()] = Removed
		}
	}
	return d
}

// listEqual compares x element-wise against y, recursing into nested lists and maps.
func listEqual(x, y reflect.Value) bool {
	if !y.IsValid() || (y.Kind() != reflect.Slice && y.Kind() != reflect.Array) {
		return false
	}
	if x.Len() != y.Len() {
		return false
	}
	for i := 0; i < x.Len(); i++ {
		xi, yi := x.Index(i).Interface(), y.Index(i).Interface()
		switch {
		case isList(xi) && isList(yi):
			if !listEqual(reflect.ValueOf(xi), reflect.ValueOf(yi)) {
				return false
			}
		case isMap(xi) && isMap(yi):
			if Structural(xi, yi) != NoChange {
				return false
			}
		default:
			if !Identical(xi, yi) {
				return false
			}
		}
	}
	return true
}

func stringKeyed(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return reflect.Value{}, false
	}
	return rv, true
}

func isMap(v any) bool {
	_, ok := stringKeyed(v)
	return ok
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
