package badger

import (
	"context"
	"testing"

	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorQueryRanking(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	embeddings := []core.Embedding{
		{ChunkId: 1, JobId: 1, Vector: []float32{1, 0, 0}, ModelVersion: "v1"},
		{ChunkId: 2, JobId: 1, Vector: []float32{0.9, 0.1, 0}, ModelVersion: "v1"},
		{ChunkId: 3, JobId: 1, Vector: []float32{0, 1, 0}, ModelVersion: "v1"},
	}
	require.NoError(t, stores.Vectors.Upsert(ctx, embeddings))

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0, 0}, 2, storage.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(1), matches[0].ChunkId)
	assert.Equal(t, core.ID(2), matches[1].ChunkId)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestVectorQueryFilters(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx, []core.Embedding{
		{ChunkId: 1, JobId: 1, Vector: []float32{1, 0}, ModelVersion: "v1"},
		{ChunkId: 2, JobId: 2, Vector: []float32{1, 0}, ModelVersion: "v1"},
		{ChunkId: 3, JobId: 1, Vector: []float32{1, 0}, ModelVersion: "v2"},
	}))

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0}, 10, storage.VectorFilter{JobId: 1})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = stores.Vectors.Query(ctx, []float32{1, 0}, 10, storage.VectorFilter{ModelVersion: "v2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ID(3), matches[0].ChunkId)

	_, err = stores.Vectors.Query(ctx, []float32{1, 0}, 0, storage.VectorFilter{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestVectorUpsertReplaces(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx, []core.Embedding{
		{ChunkId: 1, JobId: 1, Vector: []float32{1, 0}, ModelVersion: "v1"},
	}))
	require.NoError(t, stores.Vectors.Upsert(ctx, []core.Embedding{
		{ChunkId: 1, JobId: 1, Vector: []float32{0, 1}, ModelVersion: "v1"},
	}))

	matches, err := stores.Vectors.Query(ctx, []float32{0, 1}, 10, storage.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1, "same (chunk, model) pair must be replaced")
	assert.Equal(t, float32(1), matches[0].Score)
}

func TestVectorDeleteByJob(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx, []core.Embedding{
		{ChunkId: 1, JobId: 1, Vector: []float32{1, 0}, ModelVersion: "v1"},
		{ChunkId: 2, JobId: 2, Vector: []float32{1, 0}, ModelVersion: "v1"},
	}))

	require.NoError(t, stores.Vectors.DeleteByJob(ctx, 1))

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0}, 10, storage.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ID(2), matches[0].ChunkId)
}
