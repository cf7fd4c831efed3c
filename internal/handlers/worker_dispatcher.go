package handlers

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// --- common interface ---

type WorkerDispatcher[T any] interface {
	GetChannelOf(msg T) chan<- T
}

// --- single queue ---

var _ WorkerDispatcher[any] = singleQueue[any]{}

type singleQueue[T any] struct {
	effectCh chan T
}

func (q singleQueue[T]) GetChannelOf(_ T) chan<- T {
	return q.effectCh
}

// NewSingleQueue starts one worker. It stops when ctx is done, or drains its buffer and
// stops when w is stopped.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
	w *Workers,
) WorkerDispatcher[T] {
	effCh := make(chan T, bufferSize)
	startWorker(w, ctx, effCh, handleFn)
	return singleQueue[T]{effectCh: effCh}
}

// --- partitioned queue ---

var _ WorkerDispatcher[Partitionable] = partitionedQueue[Partitionable]{}

type partitionedQueue[T Partitionable] struct {
	effectChs []chan T
}

func (pq partitionedQueue[T]) GetChannelOf(msg T) chan<- T {
	idx := getIndexByHash(msg, len(pq.effectChs))
	return pq.effectChs[idx]
}

// NewPartitionedQueue starts numWorkers workers, one queue each.
func NewPartitionedQueue[T Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
	w *Workers,
) WorkerDispatcher[T] {
	channels := make([]chan T, numWorkers)
	for i := 0; i < numWorkers; i++ {
		ch := make(chan T, bufferSize)
		startWorker(w, ctx, ch, handleFn)
		channels[i] = ch
	}
	return partitionedQueue[T]{effectChs: channels}
}

// Workers tracks the goroutines behind one or more queues.
type Workers struct {
	logger *zap.Logger
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewWorkers(logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workers{
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Stopping is closed once Stop has been called.
func (w *Workers) Stopping() <-chan struct{} {
	return w.stopCh
}

// Stop asks every worker to drain its queue and waits for them to return.
func (w *Workers) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func startWorker[T any](w *Workers, ctx context.Context, ch chan T, handleFn func(context.Context, T)) {
	ready := make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		close(ready)
		for {
			select {
			case msg := <-ch:
				handleSafely(w.logger, ctx, msg, handleFn)
			case <-ctx.Done():
				return
			case <-w.stopCh:
				for {
					select {
					case msg := <-ch:
						handleSafely(w.logger, ctx, msg, handleFn)
					default:
						return
					}
				}
			}
		}
	}()
	<-ready
}

func handleSafely[T any](logger *zap.Logger, ctx context.Context, msg T, handleFn func(context.Context, T)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in worker handler", zap.Any("payload", msg), zap.Any("panic", r))
		}
	}()
	handleFn(ctx, msg)
}
