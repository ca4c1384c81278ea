package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts and always has exactly one entry per input. A failure is a
	// failure of the whole batch; no partial results are returned.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConceptExtractor extracts entities and relation triples from chunk text.
// Implementations must be thread-safe for concurrent use.
type ConceptExtractor interface {
	// ExtractConcepts analyzes text and extracts entities and relations.
	// Returns an empty slice if nothing is found; that is not an error.
	ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error)
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// ConceptExtractor instances, ensuring they share configuration and
// resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ConceptExtractor returns the concept extraction service.
	// The returned ConceptExtractor is safe for concurrent use.
	ConceptExtractor() ConceptExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
