package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/ai/mock"
	"github.com/quarryhq/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

const testText = "Kubernetes orchestrates containers across nodes. " +
	"Prometheus scrapes metrics from exporters. " +
	"Grafana renders dashboards from prometheus queries."

func newTestPipeline(t *testing.T, provider ai.AIProvider, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{
		WithPoolSize(2),
		WithRetryBaseDelay(5 * time.Millisecond),
	}, opts...)
	p, err := NewPipeline(wordCounter{}, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestPipelineRun(t *testing.T) {
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, provider)

	artifacts, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.NoError(t, err)

	require.NotEmpty(t, artifacts.Chunks)
	assert.Equal(t, core.ID(1), artifacts.JobId)
	for i, chunk := range artifacts.Chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, core.ID(1), chunk.JobId)
	}

	require.Len(t, artifacts.Embeddings, len(artifacts.Chunks))
	for i, embedding := range artifacts.Embeddings {
		assert.Equal(t, artifacts.Chunks[i].Id, embedding.ChunkId)
		assert.Equal(t, "v1", embedding.ModelVersion)
		assert.NotEmpty(t, embedding.Vector)
	}

	require.NotEmpty(t, artifacts.Concepts)
	for _, concept := range artifacts.Concepts {
		assert.Equal(t, core.ID(1), concept.JobId)
		assert.NotZero(t, concept.ChunkId)
	}
}

func TestPipelineDeterministicIDs(t *testing.T) {
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, provider)
	ctx := context.Background()

	first, err := p.Run(ctx, Request{JobID: 1, Text: testText})
	require.NoError(t, err)
	second, err := p.Run(ctx, Request{JobID: 1, Text: testText})
	require.NoError(t, err)

	require.Len(t, second.Chunks, len(first.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Id, second.Chunks[i].Id)
	}
	require.Len(t, second.Concepts, len(first.Concepts))
	for i := range first.Concepts {
		assert.Equal(t, first.Concepts[i].Id, second.Concepts[i].Id)
	}
}

func TestPipelineSkipConcepts(t *testing.T) {
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, provider)

	artifacts, err := p.Run(context.Background(), Request{
		JobID:   1,
		Text:    testText,
		Options: core.JobOptions{SkipConcepts: true},
	})
	require.NoError(t, err)

	assert.Empty(t, artifacts.Concepts)
	assert.NotEmpty(t, artifacts.Embeddings)
	assert.Zero(t, provider.MockExtractor().CallCount())
}

func TestPipelineDisabledExtractor(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.MockExtractor().ExtractConceptsFunc = func(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
		return ai.NewDisabledExtractor().ExtractConcepts(ctx, text)
	}
	p := newTestPipeline(t, provider)

	artifacts, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.NoError(t, err)
	assert.Empty(t, artifacts.Concepts, "zero concepts is not an error")
	assert.NotEmpty(t, artifacts.Embeddings)
}

func TestPipelineEmptyTextPermanent(t *testing.T) {
	p := newTestPipeline(t, mock.NewMockProvider())

	_, err := p.Run(context.Background(), Request{JobID: 1, Text: "   "})
	require.Error(t, err)
	assert.True(t, core.IsPermanent(err))
}

func TestPipelineTransientRetry(t *testing.T) {
	provider := mock.NewMockProvider()
	calls := 0
	provider.MockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls < 3 {
			return nil, core.Transient(errors.New("model overloaded"))
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1, 0}
		}
		return vectors, nil
	}
	p := newTestPipeline(t, provider)

	artifacts, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotEmpty(t, artifacts.Embeddings)
}

func TestPipelineTransientExhaustion(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.MockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, core.Transient(errors.New("model overloaded"))
	}
	p := newTestPipeline(t, provider, WithStageAttempts(2))

	_, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestPipelinePermanentNoRetry(t *testing.T) {
	provider := mock.NewMockProvider()
	calls := 0
	provider.MockExtractor().ExtractConceptsFunc = func(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
		calls++
		return nil, core.Permanent(errors.New("malformed input"))
	}
	p := newTestPipeline(t, provider, WithPoolSize(1))

	_, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.Error(t, err)
	assert.True(t, core.IsPermanent(err))
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestPipelineCheckpointStopsRun(t *testing.T) {
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, provider)

	checkpoints := 0
	_, err := p.Run(context.Background(), Request{
		JobID: 1,
		Text:  testText,
		Checkpoint: func() error {
			checkpoints++
			if checkpoints > 1 {
				return core.ErrCancelled
			}
			return nil
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.Zero(t, provider.MockEmbedder().CallCount(),
		"stages after the failing checkpoint must not run")
}

func TestPipelineEmbeddingCountMismatch(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.MockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	p := newTestPipeline(t, provider, WithStageAttempts(1))

	_, err := p.Run(context.Background(), Request{
		JobID:   1,
		Text:    testText,
		Options: core.JobOptions{ChunkTokenBudget: 6},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
}

func TestPipelineDimensionCheck(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.MockEmbedder().Dimension = 4
	p := newTestPipeline(t, provider, WithDimension(8), WithStageAttempts(1))

	_, err := p.Run(context.Background(), Request{JobID: 1, Text: testText})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVectorLength)
}
