package model

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidNamespace is returned for an empty namespace or one containing NamespaceSep.
	ErrInvalidNamespace = errors.New("namespace must be a non-empty string without separator")

	// ErrNotStarted is returned by operations that need a started runtime.
	ErrNotStarted = errors.New("runtime not started")

	// ErrResultConsumed is returned by Await when the result channel was already drained.
	ErrResultConsumed = errors.New("dispatch result already consumed")
)

// DuplicateNamespaceError is returned when registering a namespace that already exists.
type DuplicateNamespaceError struct {
	Namespace string
}

func (e *DuplicateNamespaceError) Error() string {
	return fmt.Sprintf("namespace should be unique: %q already registered", e.Namespace)
}

// UnknownNamespaceError is returned when removing a namespace that is not registered.
// Suggestion holds the closest registered namespace, if any.
type UnknownNamespaceError struct {
	Namespace  string
	Suggestion string
}

func (e *UnknownNamespaceError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown namespace %q (did you mean %q?)", e.Namespace, e.Suggestion)
	}
	return fmt.Sprintf("unknown namespace %q", e.Namespace)
}

// EffectError carries a failure raised by an effect body or an effect wrapper to the
// error hook. Calling PreventDefault suppresses the failure for the dispatch caller.
type EffectError struct {
	Action Action
	cause  error

	prevented atomic.Bool
}

// NewEffectError wraps cause for the given triggering action.
func NewEffectError(cause error, action Action) *EffectError {
	return &EffectError{Action: action, cause: cause}
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("effect %s: %v", e.Action.Type, e.cause)
}

func (e *EffectError) Unwrap() error {
	return e.cause
}

// PreventDefault marks the failure as handled.
func (e *EffectError) PreventDefault() {
	e.prevented.Store(true)
}

// Prevented reports whether PreventDefault was called.
func (e *EffectError) Prevented() bool {
	return e.prevented.Load()
}

// PanicError is what a recovered panic turns into.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// AsError converts a recovered value into an error, keeping errors as they are.
func AsError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

// NamespacePrefixWarning flags a Put whose action type already carries the effect's own
// namespace. It is advisory and never returned to callers.
type NamespacePrefixWarning struct {
	Namespace string
	Type      string
}

func (w NamespacePrefixWarning) Error() string {
	return fmt.Sprintf("[put] %s should not be prefixed with namespace %s", w.Type, w.Namespace)
}
