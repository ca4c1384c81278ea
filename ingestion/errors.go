package ingestion

import "errors"

var (
	// ErrTokenCounterRequired is returned when a token counter is not provided.
	ErrTokenCounterRequired = errors.New("token counter required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than chunks submitted.
	ErrEmbeddingCountMismatch = errors.New("embedding count does not match chunk count")
)
