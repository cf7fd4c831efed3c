// Package store holds the state tree and applies the combined reducer to it.
//
// Every published state carries a version. Reductions are serialized; listeners are
// called after the lock is released, so they may dispatch again. Published states are
// delivered one at a time in version order by whichever publisher finds the delivery
// queue idle.
package store

import (
	"slices"
	"sync"

	"github.com/on-the-ground/modelstore/diff"
	"github.com/on-the-ground/modelstore/model"
)

// Listener is notified of every published state.
type Listener func(version uint64, state model.State)

// published is a pending delivery. A non-zero only restricts it to one listener.
type published struct {
	version uint64
	state   model.State
	only    uint64
}

type Store struct {
	mu       sync.Mutex
	state    model.State
	version  uint64
	reducer  model.RootReducer
	pending  []published
	draining bool

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// New creates a store holding a copy of initial. A nil reducer keeps the state unchanged.
func New(initial model.State, reducer model.RootReducer) *Store {
	if initial == nil {
		initial = model.State{}
	}
	if reducer == nil {
		reducer = identity
	}
	return &Store{
		state:     initial.Clone(),
		reducer:   reducer,
		listeners: make(map[uint64]Listener),
	}
}

func identity(s model.State, _ model.Action) model.State {
	return s
}

// GetState returns the current snapshot.
func (s *Store) GetState() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current snapshot with its version.
func (s *Store) Snapshot() (uint64, model.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.state
}

// Apply runs the reducer over the current state. A panicking reducer leaves the state
// untouched and is reported as an error. When another goroutine is delivering, the new
// state is handed to the listeners by that goroutine, possibly after Apply returns.
func (s *Store) Apply(action model.Action) (changed bool, err error) {
	s.mu.Lock()
	prev := s.state
	next, err := s.reduce(prev, action)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	changed = s.publishLocked(prev, next)
	drain := s.claimLocked()
	s.mu.Unlock()

	if drain {
		s.drain()
	}
	return changed, nil
}

func (s *Store) reduce(state model.State, action model.Action) (next model.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.AsError(r)
		}
	}()
	if next = s.reducer(state, action); next == nil {
		next = model.State{}
	}
	return next, nil
}

// Reconfigure installs reducer and applies fn to a copy of the current state under the
// same lock, so no action is reduced between the two. A nil reducer keeps the current one;
// a nil fn keeps the state.
func (s *Store) Reconfigure(reducer model.RootReducer, fn func(model.State)) bool {
	s.mu.Lock()
	if reducer != nil {
		s.reducer = reducer
	}
	prev := s.state
	next := prev
	if fn != nil {
		next = prev.Clone()
		fn(next)
	}
	changed := s.publishLocked(prev, next)
	drain := s.claimLocked()
	s.mu.Unlock()

	if drain {
		s.drain()
	}
	return changed
}

func (s *Store) publishLocked(prev, next model.State) bool {
	if sameState(prev, next) {
		return false
	}
	s.state = next
	s.version++
	s.pending = append(s.pending, published{version: s.version, state: next})
	return true
}

// claimLocked reports whether the caller has to drain the delivery queue.
func (s *Store) claimLocked() bool {
	if s.draining || len(s.pending) == 0 {
		return false
	}
	s.draining = true
	return true
}

// drain delivers pending states until the queue is empty. States published meanwhile,
// including by the listeners themselves, are delivered by the same loop.
func (s *Store) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		p := s.pending[0]
		s.pending[0] = published{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.notify(p)
	}
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.addLocked(l)
	s.lmu.Unlock()
	return s.unsubscribeFunc(id)
}

// SubscribeSince registers l for a caller that has observed the state up to version. If
// the store has moved past version, l alone also receives the current state, queued
// behind the deliveries already pending.
func (s *Store) SubscribeSince(version uint64, l Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.lmu.Lock()
	id := s.addLocked(l)
	s.lmu.Unlock()
	if s.version > version {
		s.pending = append(s.pending, published{version: s.version, state: s.state, only: id})
	}
	drain := s.claimLocked()
	s.mu.Unlock()

	if drain {
		s.drain()
	}
	return s.unsubscribeFunc(id)
}

func (s *Store) addLocked(l Listener) uint64 {
	s.nextID++
	s.listeners[s.nextID] = l
	return s.nextID
}

func (s *Store) unsubscribeFunc(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) notify(p published) {
	if p.only != 0 {
		s.lmu.RLock()
		l, ok := s.listeners[p.only]
		s.lmu.RUnlock()
		if ok {
			l(p.version, p.state)
		}
		return
	}

	s.lmu.RLock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.lmu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.lmu.RLock()
		l, ok := s.listeners[id]
		s.lmu.RUnlock()
		if ok {
			l(p.version, p.state)
		}
	}
}

// sameState compares snapshots slice by slice with strict equality.
func sameState(a, b model.State) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !diff.Identical(v, w) {
			return false
		}
	}
	return true
}
