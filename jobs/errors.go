package jobs

import "errors"

var (
	// ErrStoresRequired is returned when the store bundle is not provided.
	ErrStoresRequired = errors.New("stores required")

	// ErrTranscriberRequired is returned when a transcription client is not provided.
	ErrTranscriberRequired = errors.New("transcription client required")

	// ErrPipelineRequired is returned when a pipeline is not provided.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrQueueRequired is returned when a task queue is not provided.
	ErrQueueRequired = errors.New("task queue required")

	// ErrJobTerminal is returned when an operation targets a job that
	// already reached a terminal state.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrNotReindexable is returned when Reindex targets a job whose
	// terminal state has no staged artifacts to replay.
	ErrNotReindexable = errors.New("job cannot be re-indexed")
)
