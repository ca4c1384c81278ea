package badger

import (
	"context"
	"testing"

	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagingRawText(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Staging.PutRawText(ctx, 1, "the raw transcript"))

	text, err := stores.Staging.GetRawText(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "the raw transcript", text)

	_, err = stores.Staging.GetRawText(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStagingArtifactsRoundTrip(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	artifacts := &core.Artifacts{
		JobId:  1,
		Chunks: testChunks(1, "hello ", "world"),
		Concepts: []core.Concept{
			{Id: 3, ChunkId: core.ChunkID(1, 0), JobId: 1, Label: "greeting", Kind: core.ConceptKindEntity},
		},
		Embeddings: []core.Embedding{
			{ChunkId: core.ChunkID(1, 0), JobId: 1, Vector: []float32{0.25, -0.5}, ModelVersion: "v1"},
		},
	}
	require.NoError(t, stores.Staging.PutArtifacts(ctx, artifacts))

	got, err := stores.Staging.GetArtifacts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, artifacts, got)
}

func TestStagingDelete(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Staging.PutRawText(ctx, 1, "text"))
	require.NoError(t, stores.Staging.PutArtifacts(ctx, &core.Artifacts{JobId: 1}))
	require.NoError(t, stores.Staging.DeleteStaging(ctx, 1))

	_, err := stores.Staging.GetRawText(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = stores.Staging.GetArtifacts(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTaskStore(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	tasks, err := stores.Tasks.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, stores.Tasks.PutTask(ctx, &core.Task{
		Id: "t1", Name: "job.poll", Payload: []byte("1"), MaxAttempts: 3,
	}))
	require.NoError(t, stores.Tasks.PutTask(ctx, &core.Task{
		Id: "t2", Name: "job.process", Payload: []byte("2"), MaxAttempts: 3,
	}))

	tasks, err = stores.Tasks.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, stores.Tasks.DeleteTask(ctx, "t1"))
	tasks, err = stores.Tasks.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t2", tasks[0].Id)
}
