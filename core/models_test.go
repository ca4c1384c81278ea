package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContentDeterministic(t *testing.T) {
	a := IDFromContent("hello world")
	b := IDFromContent("hello world")
	c := IDFromContent("hello world!")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotZero(t, a)
}

func TestChunkIDDependsOnJobAndPosition(t *testing.T) {
	assert.Equal(t, ChunkID(1, 0), ChunkID(1, 0))
	assert.NotEqual(t, ChunkID(1, 0), ChunkID(1, 1))
	assert.NotEqual(t, ChunkID(1, 0), ChunkID(2, 0))
}

func TestConceptIDDependsOnTuple(t *testing.T) {
	assert.Equal(t, ConceptID(1, 0, "(entity,go)"), ConceptID(1, 0, "(entity,go)"))
	assert.NotEqual(t, ConceptID(1, 0, "(entity,go)"), ConceptID(1, 0, "(entity,rust)"))
	assert.NotEqual(t, ConceptID(1, 0, "(entity,go)"), ConceptID(1, 1, "(entity,go)"))
}

func TestSubmissionKeySeparatesFields(t *testing.T) {
	// The separator keeps ("ab", "c") distinct from ("a", "bc").
	assert.NotEqual(t, SubmissionKey("ab", "c"), SubmissionKey("a", "bc"))
	assert.Equal(t, SubmissionKey("doc.txt", "k1"), SubmissionKey("doc.txt", "k1"))
	assert.NotEqual(t, SubmissionKey("doc.txt", "k1"), SubmissionKey("doc.txt", "k2"))
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "SUBMITTED", JobStateSubmitted.String())
	assert.Equal(t, "EXTERNAL_PENDING", JobStateExternalPending.String())
	assert.Equal(t, "INDEXED_DEGRADED", JobStateIndexedDegraded.String())
	assert.Equal(t, "JobState(99)", JobState(99).String())
}

func TestJobStateTerminal(t *testing.T) {
	terminal := []JobState{JobStateIndexed, JobStateIndexedDegraded, JobStateFailed, JobStateCancelled}
	active := []JobState{JobStateSubmitted, JobStateExternalPending, JobStateExternalPolling,
		JobStateContentReady, JobStateProcessing, JobStateWriting}

	for _, s := range terminal {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range active {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestConceptTuple(t *testing.T) {
	entity := &Concept{Label: "kubernetes", Kind: ConceptKindEntity}
	assert.Equal(t, "(entity,kubernetes)", entity.Tuple())

	relation := &Concept{
		Label: "orchestrates",
		Kind:  ConceptKindRelation,
		Triple: Triple{
			Subject:   "kubernetes",
			Predicate: "orchestrates",
			Object:    "containers",
		},
	}
	assert.Equal(t, "(kubernetes,orchestrates,containers)", relation.Tuple())
}
