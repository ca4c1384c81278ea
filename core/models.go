package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identifier of a chunk from its owning job and its
// position in the document. Re-processing a job therefore overwrites the
// same records instead of duplicating them.
func ChunkID(jobID ID, sequenceIndex int) ID {
	return IDFromContent(fmt.Sprintf("chunk:%d:%d", jobID, sequenceIndex))
}

// ConceptID derives the identifier of a concept from its owning job, the
// sequence index of the source chunk, and the concept tuple.
func ConceptID(jobID ID, sequenceIndex int, tuple string) ID {
	return IDFromContent(fmt.Sprintf("concept:%d:%d:%s", jobID, sequenceIndex, tuple))
}

// SubmissionKey derives the idempotency index key for a submission pair.
func SubmissionKey(sourceRef, idempotencyKey string) ID {
	return IDFromContent("submission:" + sourceRef + "\x00" + idempotencyKey)
}

// JobState identifies a stage in the ingestion job lifecycle.
type JobState int

const (
	// JobStateSubmitted is the initial state of a freshly created job.
	JobStateSubmitted JobState = iota + 1
	// JobStateExternalPending means an external transcription job was
	// requested and the next poll has been scheduled.
	JobStateExternalPending
	// JobStateExternalPolling means a poll of the external job is in flight.
	JobStateExternalPolling
	// JobStateContentReady means raw text is staged and processing can start.
	JobStateContentReady
	// JobStateProcessing means the pipeline is transforming the raw text.
	JobStateProcessing
	// JobStateWriting means computed artifacts are being persisted.
	JobStateWriting
	// JobStateIndexed is the terminal success state.
	JobStateIndexed
	// JobStateIndexedDegraded is terminal: chunks and vectors are queryable
	// but the concept graph write did not succeed.
	JobStateIndexedDegraded
	// JobStateFailed is the terminal failure state.
	JobStateFailed
	// JobStateCancelled is the terminal state of a cancelled job.
	JobStateCancelled
)

var jobStateNames = map[JobState]string{
	JobStateSubmitted:       "SUBMITTED",
	JobStateExternalPending: "EXTERNAL_PENDING",
	JobStateExternalPolling: "EXTERNAL_POLLING",
	JobStateContentReady:    "CONTENT_READY",
	JobStateProcessing:      "PROCESSING",
	JobStateWriting:         "WRITING",
	JobStateIndexed:         "INDEXED",
	JobStateIndexedDegraded: "INDEXED_DEGRADED",
	JobStateFailed:          "FAILED",
	JobStateCancelled:       "CANCELLED",
}

func (s JobState) String() string {
	if name, ok := jobStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobState(%d)", int(s))
}

// Terminal reports whether the state is final. Terminal jobs are retained
// for audit and never transition again.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateIndexed, JobStateIndexedDegraded, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// Stable failure reason codes surfaced to callers. These are part of the
// public contract; the human-readable message lives in Job.LastError.
const (
	ReasonExternalJobTimeout   = "external_job_timeout"
	ReasonExternalJobFailed    = "external_job_failed"
	ReasonPipelineFailed       = "pipeline_failed"
	ReasonWriteDocumentsFailed = "write_documents_failed"
	ReasonWriteVectorsFailed   = "write_vectors_failed"
	ReasonWriteGraphDegraded   = "write_graph_degraded"
	ReasonCancelled            = "cancelled"
)

// JobOptions carries the per-submission knobs recognized by the coordinator.
// Zero values mean "use the configured default".
type JobOptions struct {
	SkipConcepts          bool
	ChunkTokenBudget      int
	ChunkOverlap          int
	EmbeddingModelVersion string
}

// Job represents one ingestion request and its lifecycle state.
// It is mutated only by the job coordinator.
type Job struct {
	Id              ID
	SourceRef       string
	IdempotencyKey  string
	State           JobState
	Reason          string // stable reason code, set on FAILED/INDEXED_DEGRADED/CANCELLED
	LastError       string // human-readable diagnostics, never a raw internal fault
	ExternalJobId   string // set once an external transcription job is submitted
	AttemptCount    int
	PollCount       int
	PollStartedAt   time.Time
	CancelRequested bool // honored at the next checkpoint
	Options         JobOptions
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the job reached a terminal state.
func (j *Job) Terminal() bool {
	return j.State.Terminal()
}

// Chunk is a contiguous span of normalized source text, the atomic unit
// indexed for retrieval.
type Chunk struct {
	Id            ID
	JobId         ID
	SequenceIndex int // 0-based, defines document order
	Text          string
	TokenCount    int
	StartOffset   int // byte offset into the normalized source text
	EndOffset     int
	Degraded      bool // true when a single oversized sentence forced a hard cut
	Indexed       bool // false until the vector write for the job succeeded
}

// ConceptKind distinguishes plain entities from relation triples.
type ConceptKind int

const (
	// ConceptKindEntity is a named entity or abstract concept.
	ConceptKindEntity ConceptKind = iota + 1
	// ConceptKindRelation is a subject-predicate-object triple.
	ConceptKindRelation
)

func (k ConceptKind) String() string {
	switch k {
	case ConceptKindEntity:
		return "entity"
	case ConceptKindRelation:
		return "relation"
	}
	return fmt.Sprintf("ConceptKind(%d)", int(k))
}

// Triple is an RDF-like subject-predicate-object relation. Subject and
// object reference labels extracted within the same job.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// Concept is an entity or relation extracted from a chunk.
type Concept struct {
	Id      ID
	ChunkId ID
	JobId   ID
	Label   string
	Kind    ConceptKind
	Triple  Triple // zero value unless Kind is ConceptKindRelation
}

// Tuple returns a canonical string representation of the concept.
// It is the input for deterministic ID generation.
func (c *Concept) Tuple() string {
	if c.Kind == ConceptKindRelation {
		return "(" + c.Triple.Subject + "," + c.Triple.Predicate + "," + c.Triple.Object + ")"
	}
	return "(entity," + c.Label + ")"
}

// Embedding is a dense vector representation of a chunk. Exactly one
// current embedding exists per chunk per model version.
type Embedding struct {
	ChunkId      ID
	JobId        ID
	Vector       []float32
	ModelVersion string
}

// Artifacts bundles everything the pipeline computed for a job. It is
// staged durably between PROCESSING and WRITING so retries and re-index
// runs never depend on worker memory.
type Artifacts struct {
	JobId      ID
	Chunks     []Chunk
	Concepts   []Concept
	Embeddings []Embedding
}

// VectorMatch is a single ranked result from a vector store query.
type VectorMatch struct {
	ChunkId ID
	Score   float32
}

// Task is a durable unit of queued work. The payload is opaque to the
// queue; the coordinator encodes the job ID into it.
type Task struct {
	Id          string
	Name        string
	Payload     []byte
	ETA         time.Time
	Attempts    int
	MaxAttempts int
}
