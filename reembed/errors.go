package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrModelVersionRequired is returned when no target model version is set.
	ErrModelVersionRequired = errors.New("target model version required")
)
