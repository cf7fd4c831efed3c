// Package watch observes a derived value of the state tree and reports its transitions.
package watch

import (
	"sync"

	"github.com/on-the-ground/modelstore/diff"
	"github.com/on-the-ground/modelstore/model"
)

// Callback receives the new value, the previous value and the compare result.
type Callback func(newValue, oldValue, delta any)

type Option func(*Watcher)

// WithCompare selects the compare strategy. The default is diff.StrategyDefault.
func WithCompare(s diff.Strategy) Option {
	return func(w *Watcher) {
		w.compare = diff.For(s)
	}
}

// WithCompareFunc installs a custom compare function.
func WithCompareFunc(fn diff.CompareFunc) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.compare = fn
		}
	}
}

// WithImmediate fires the callback once at registration with (cur, cur, diff.NoChange).
func WithImmediate() Option {
	return func(w *Watcher) {
		w.immediate = true
	}
}

// WithInitValue overrides the value the first transition is compared against.
func WithInitValue(v any) Option {
	return func(w *Watcher) {
		w.initValue = v
		w.hasInit = true
	}
}

// Watcher holds the last observed selection. Notify is safe for concurrent use.
type Watcher struct {
	selectFn func(model.State) any
	cb       Callback
	compare  diff.CompareFunc

	immediate bool
	initValue any
	hasInit   bool

	// deliver serializes Notify so callbacks never overlap.
	deliver sync.Mutex

	mu          sync.Mutex
	current     any
	lastVersion uint64
}

// New registers a watcher over the state returned by getState, which is read once to seed
// the current value.
func New(
	getState func() model.State,
	selectFn func(model.State) any,
	cb Callback,
	opts ...Option,
) *Watcher {
	w := &Watcher{
		selectFn: selectFn,
		cb:       cb,
		compare:  diff.Default,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.current = selectFn(getState())
	if w.hasInit {
		w.current = w.initValue
	}
	if w.immediate {
		cur := w.current
		w.cb(cur, cur, diff.NoChange)
	}
	return w
}

// Seed records the state version the watcher was created at. Notifications at or below
// it are ignored.
func (w *Watcher) Seed(version uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if version > w.lastVersion {
		w.lastVersion = version
	}
}

// Notify feeds a published state. Versions not newer than the last one seen are dropped,
// so the callback sees transitions in publication order. Concurrent calls run one at a
// time; the callback must not call Notify itself.
func (w *Watcher) Notify(version uint64, state model.State) {
	w.deliver.Lock()
	defer w.deliver.Unlock()

	w.mu.Lock()
	if version <= w.lastVersion {
		w.mu.Unlock()
		return
	}
	w.lastVersion = version

	next := w.selectFn(state)
	prev := w.current
	delta := w.compare(prev, next)
	if delta == diff.NoChange {
		w.mu.Unlock()
		return
	}
	w.current = next
	w.mu.Unlock()

	w.cb(next, prev, delta)
}

// Current returns the last observed selection.
func (w *Watcher) Current() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
