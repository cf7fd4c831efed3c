package handlers

// ScopeConfig sizes the worker queues of a handler scope.
type ScopeConfig struct {
	BufferSize int // default: 1
	NumWorkers int // default: 1
}

func NewScopeConfig(bufferSize int, numWorkers int) ScopeConfig {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return ScopeConfig{
		BufferSize: bufferSize,
		NumWorkers: numWorkers,
	}
}

// Partitionable messages with the same key are handled by the same worker, in order.
type Partitionable interface {
	PartitionKey() string
}
