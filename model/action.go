package model

import "strings"

// NamespaceSep separates a namespace from an action key in a qualified action type.
const NamespaceSep = "/"

// Action is the unit of dispatch.
//
// Type is either a bare key ("add") or a qualified key ("count/add").
// Payload is opaque to the runtime.
type Action struct {
	Type    string
	Payload any

	inner bool
}

// IsInner reports whether the action was redispatched from inside an effect.
func (a Action) IsInner() bool {
	return a.inner
}

// Inner returns a copy of the action tagged as an effect-internal redispatch.
func Inner(a Action) Action {
	a.inner = true
	return a
}

// Qualify builds the qualified action type "{namespace}/{key}".
func Qualify(namespace, key string) string {
	return namespace + NamespaceSep + key
}

// SplitType splits a qualified action type on the first separator.
// ok is false for bare keys.
func SplitType(actionType string) (namespace, key string, ok bool) {
	return strings.Cut(actionType, NamespaceSep)
}

// IsQualified reports whether actionType carries a namespace.
func IsQualified(actionType string) bool {
	return strings.Contains(actionType, NamespaceSep)
}

// QualifyIfBare prefixes a bare action type with namespace and leaves qualified ones untouched.
func QualifyIfBare(namespace string, a Action) Action {
	if !IsQualified(a.Type) {
		a.Type = Qualify(namespace, a.Type)
	}
	return a
}
