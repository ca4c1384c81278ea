package storage

import (
	"testing"
	"time"

	"github.com/quarryhq/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSerialization(t *testing.T) {
	// Timestamps persist at microsecond precision.
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &core.Job{
		Id:             42,
		SourceRef:      "https://example.com/talk.mp3",
		IdempotencyKey: "k1",
		State:          core.JobStateExternalPending,
		ExternalJobId:  "ext-123",
		AttemptCount:   2,
		PollCount:      5,
		PollStartedAt:  now,
		Options: core.JobOptions{
			SkipConcepts:          true,
			ChunkTokenBudget:      256,
			EmbeddingModelVersion: "v2",
		},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}

	got, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestJobSerializationZeroTimes(t *testing.T) {
	job := &core.Job{Id: 1, SourceRef: "doc.txt", State: core.JobStateSubmitted}

	got, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.True(t, got.PollStartedAt.IsZero(), "zero time must survive the round trip as zero")
	assert.True(t, got.CreatedAt.IsZero())
}

func TestConceptSerializationRelation(t *testing.T) {
	concept := &core.Concept{
		Id:      core.ConceptID(1, 0, "(a,uses,b)"),
		ChunkId: core.ChunkID(1, 0),
		JobId:   1,
		Label:   "uses",
		Kind:    core.ConceptKindRelation,
		Triple:  core.Triple{Subject: "a", Predicate: "uses", Object: "b"},
	}

	got, err := UnmarshalConcept(MarshalConcept(concept))
	require.NoError(t, err)
	assert.Equal(t, concept, got)
}

func TestArtifactsSerialization(t *testing.T) {
	artifacts := &core.Artifacts{
		JobId: 7,
		Chunks: []core.Chunk{
			{Id: 1, JobId: 7, Text: "alpha ", TokenCount: 1, StartOffset: 0, EndOffset: 6},
			{Id: 2, JobId: 7, SequenceIndex: 1, Text: "beta", TokenCount: 1, StartOffset: 6, EndOffset: 10, Degraded: true},
		},
		Concepts: []core.Concept{
			{Id: 3, ChunkId: 1, JobId: 7, Label: "alpha", Kind: core.ConceptKindEntity},
		},
		Embeddings: []core.Embedding{
			{ChunkId: 1, JobId: 7, Vector: []float32{0.25, -1, 3.5}, ModelVersion: "v1"},
		},
	}

	got, err := UnmarshalArtifacts(MarshalArtifacts(artifacts))
	require.NoError(t, err)
	assert.Equal(t, artifacts, got)
}

func TestTaskSerialization(t *testing.T) {
	task := &core.Task{
		Id:          "t-1",
		Name:        "job.poll",
		Payload:     MarshalID(42),
		ETA:         time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond),
		Attempts:    1,
		MaxAttempts: 3,
	}

	got, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)
	assert.Equal(t, task.Id, got.Id)
	assert.Equal(t, task.Name, got.Name)
	assert.True(t, task.ETA.Equal(got.ETA))

	id, err := UnmarshalID(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, core.ID(42), id)
}

func TestUnmarshalTruncatedData(t *testing.T) {
	data := MarshalJob(&core.Job{Id: 1, SourceRef: "doc.txt", State: core.JobStateSubmitted})

	_, err := UnmarshalJob(data[:len(data)/2])
	assert.Error(t, err)

	_, err = UnmarshalID(nil)
	assert.Error(t, err)
}
