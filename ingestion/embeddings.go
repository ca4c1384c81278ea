package ingestion

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/core"
)

// embedChunks embeds all chunk texts in one batch. The embedder preserves
// input order, so vector i belongs to chunk i; a batch failure fails every
// chunk and the stage retry re-submits the whole batch.
func (p *Pipeline) embedChunks(ctx context.Context, jobID core.ID, chunks []core.Chunk, modelVersion string) ([]core.Embedding, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.provider.Embedder().EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			ErrEmbeddingCountMismatch, len(vectors), len(chunks))
	}

	embeddings := make([]core.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = core.Embedding{
			ChunkId:      chunk.Id,
			JobId:        jobID,
			Vector:       vectors[i],
			ModelVersion: modelVersion,
		}
		if err := core.ValidateEmbedding(&embeddings[i], p.dimension); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.SequenceIndex, err)
		}
	}
	return embeddings, nil
}
