// Package supervisor tracks goroutines spawned for in-flight effects.
package supervisor

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Supervisor runs tasks in their own goroutines, recovers and logs their panics, and lets
// callers wait until no task is running.
type Supervisor struct {
	logger *zap.Logger

	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func New(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &Supervisor{
		logger: logger,
		idle:   idle,
	}
}

// Go runs fn in a new goroutine. name is only used for logging.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(context.Context)) {
	s.mu.Lock()
	if s.n == 0 {
		s.idle = make(chan struct{})
	}
	s.n++
	s.mu.Unlock()

	ready := make(chan struct{})
	go func() {
		defer s.done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in supervised routine",
					zap.String("routine", name),
					zap.Any("error", r),
				)
			}
		}()
		close(ready)
		fn(ctx)
	}()
	<-ready
}

func (s *Supervisor) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n--
	if s.n == 0 {
		close(s.idle)
	}
}

// InFlight returns the number of running tasks.
func (s *Supervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Wait blocks until no task is running or ctx is done. Tasks started while waiting are
// waited for too.
func (s *Supervisor) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.n == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
