package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// BatchProcessor embeds batches of chunks under the target model version
// and upserts the resulting vectors.
type BatchProcessor struct {
	vectors        storage.VectorStore
	embedder       ai.Embedder
	modelVersion   string
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(vectors storage.VectorStore, embedder ai.Embedder, modelVersion string, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		vectors:        vectors,
		embedder:       embedder,
		modelVersion:   modelVersion,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds one batch of chunks and writes the vectors under the
// target model version. Existing vectors for other versions are untouched;
// re-running over the same chunks replaces the target version in place.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
	}

	embeddings := make([]core.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = core.Embedding{
			ChunkId:      chunk.Id,
			JobId:        chunk.JobId,
			Vector:       vectors[i],
			ModelVersion: bp.modelVersion,
		}
	}

	if err := bp.vectors.Upsert(ctx, embeddings); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	return nil
}
