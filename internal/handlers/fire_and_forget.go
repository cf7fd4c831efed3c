package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FireAndForgetHandler queues payloads for background handling. Payloads with the same
// partition key are handled in submission order.
type FireAndForgetHandler[T Partitionable] struct {
	*effectScope[T]
}

// NewFireAndForgetHandler starts the workers of a handler scope. A single worker is used
// when config.NumWorkers is 1, a partitioned queue otherwise. teardown runs once on Close,
// after the queues are drained.
func NewFireAndForgetHandler[T Partitionable](
	ctx context.Context,
	config ScopeConfig,
	logger *zap.Logger,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	config = NewScopeConfig(config.BufferSize, config.NumWorkers)
	workers := NewWorkers(logger)

	var dispatcher WorkerDispatcher[T]
	if config.NumWorkers == 1 {
		dispatcher = NewSingleQueue(ctx, config.BufferSize, handleFn, workers)
	} else {
		dispatcher = NewPartitionedQueue(ctx, config.NumWorkers, config.BufferSize, handleFn, workers)
	}
	return FireAndForgetHandler[T]{
		effectScope: newEffectScope(dispatcher, workers, teardown),
	}
}

// FireAndForgetEffect queues payload. It reports false when ctx is done or the scope is
// closed before the payload could be queued.
func (ffh FireAndForgetHandler[T]) FireAndForgetEffect(ctx context.Context, payload T) bool {
	select {
	case <-ffh.workers.Stopping():
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-ffh.workers.Stopping():
		return false
	case ffh.dispatcher.GetChannelOf(payload) <- payload:
		return true
	}
}

// effectScope owns the workers of a handler. Close is safe to call more than once.
type effectScope[T any] struct {
	ScopeId    string
	dispatcher WorkerDispatcher[T]
	workers    *Workers
	teardown   func()
	closeOnce  sync.Once
}

func (es *effectScope[T]) Close() {
	es.closeOnce.Do(func() {
		es.workers.Stop()
		es.workers.logger.Debug("handler scope closed", zap.String("scopeId", es.ScopeId))
		if es.teardown != nil {
			es.teardown()
		}
	})
}

func newEffectScope[T any](
	dispatcher WorkerDispatcher[T],
	workers *Workers,
	teardown func(),
) *effectScope[T] {
	return &effectScope[T]{
		ScopeId:    uuid.New().String(),
		dispatcher: dispatcher,
		workers:    workers,
		teardown:   teardown,
	}
}
