package queue

import "errors"

var (
	// ErrQueueClosed is returned when enqueueing on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrUnknownTask is returned when a task names a handler that was
	// never registered.
	ErrUnknownTask = errors.New("unknown task name")

	// ErrTaskStoreRequired is returned when a task store is not provided.
	ErrTaskStoreRequired = errors.New("task store required")
)
