package storage

import (
	"context"
	"time"

	"github.com/quarryhq/quarry/core"
)

// JobRepository manages ingestion job records and the idempotent submission
// index. Implementations must be thread-safe.
type JobRepository interface {
	// CreateJob persists a new job and registers its submission key in the
	// active index. Returns ErrDuplicateKey when an active (non-terminal)
	// job already exists for the same submission key.
	CreateJob(ctx context.Context, job *core.Job) error

	// UpdateJob persists the job's current state. Updates UpdatedAt.
	// When the job transitions into a terminal state, its submission key is
	// released from the active index so the pair can be resubmitted.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID. Returns ErrNotFound if it doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)

	// GetActiveJob looks up the non-terminal job registered for a submission
	// key. Returns ErrNotFound when no active job holds the key.
	GetActiveJob(ctx context.Context, submissionKey core.ID) (*core.Job, error)

	// ListJobs returns all jobs ordered by ID. Intended for inspection and
	// recovery scans, not hot paths.
	ListJobs(ctx context.Context) ([]*core.Job, error)

	// AcquireLease claims the single-writer lease for a job, identifying the
	// holder by owner. Re-acquiring with the same owner extends the lease.
	// Returns ErrJobLeaseHeld if a different owner holds an unexpired lease.
	AcquireLease(ctx context.Context, jobID core.ID, owner string, ttl time.Duration) error

	// ReleaseLease releases the lease if owner holds it. Releasing a lease
	// held by someone else is a no-op.
	ReleaseLease(ctx context.Context, jobID core.ID, owner string) error

	// NextJobID allocates a new unique job identifier.
	NextJobID() (core.ID, error)
}

// DocumentStore persists chunks and their metadata. It is the system of
// record for chunk identity; the vector and graph stores reference into it.
type DocumentStore interface {
	// PutChunks upserts all chunks atomically.
	PutChunks(ctx context.Context, chunks []core.Chunk) error

	// GetChunk retrieves a chunk by ID. Returns ErrNotFound if missing.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// ListChunks returns a job's chunks ordered by sequence index.
	ListChunks(ctx context.Context, jobID core.ID) ([]core.Chunk, error)

	// MarkIndexed sets the indexed flag on every chunk of a job.
	MarkIndexed(ctx context.Context, jobID core.ID, indexed bool) error

	// DeleteChunks removes all chunks of a job.
	DeleteChunks(ctx context.Context, jobID core.ID) error
}

// VectorFilter restricts a vector query. Zero values mean no restriction.
type VectorFilter struct {
	JobId        core.ID
	ModelVersion string
}

// VectorStore is the similarity index over chunk embeddings.
// Implementations must support concurrent upserts for different chunk IDs.
type VectorStore interface {
	// Upsert stores embeddings, replacing any existing vector for the same
	// (chunk, model version) pair.
	Upsert(ctx context.Context, embeddings []core.Embedding) error

	// Query returns up to topK chunk IDs ranked by similarity to vector,
	// highest first.
	Query(ctx context.Context, vector []float32, topK int, filter VectorFilter) ([]core.VectorMatch, error)

	// DeleteByJob removes every vector belonging to a job.
	DeleteByJob(ctx context.Context, jobID core.ID) error
}

// GraphStore persists extracted concepts and relation triples.
type GraphStore interface {
	// PutConcepts upserts all concepts atomically.
	PutConcepts(ctx context.Context, concepts []core.Concept) error

	// ListConcepts returns a job's concepts, entities before relations.
	ListConcepts(ctx context.Context, jobID core.ID) ([]core.Concept, error)

	// ListTriples returns the relation triples of a job.
	ListTriples(ctx context.Context, jobID core.ID) ([]core.Triple, error)

	// DeleteByJob removes every concept belonging to a job.
	DeleteByJob(ctx context.Context, jobID core.ID) error
}

// StagingStore holds intermediate job artifacts between pipeline stages so
// retries and re-index runs never depend on worker memory.
type StagingStore interface {
	// PutRawText stages the retrieved source text of a job.
	PutRawText(ctx context.Context, jobID core.ID, text string) error

	// GetRawText retrieves staged text. Returns ErrNotFound if missing.
	GetRawText(ctx context.Context, jobID core.ID) (string, error)

	// PutArtifacts stages the pipeline output of a job.
	PutArtifacts(ctx context.Context, artifacts *core.Artifacts) error

	// GetArtifacts retrieves staged pipeline output. Returns ErrNotFound if
	// missing.
	GetArtifacts(ctx context.Context, jobID core.ID) (*core.Artifacts, error)

	// DeleteStaging drops all staged data of a job.
	DeleteStaging(ctx context.Context, jobID core.ID) error
}

// TaskStore persists queued tasks so scheduled work survives restarts.
type TaskStore interface {
	// PutTask upserts a task record.
	PutTask(ctx context.Context, task *core.Task) error

	// DeleteTask removes a completed or abandoned task.
	DeleteTask(ctx context.Context, id string) error

	// ListTasks returns all pending tasks, ordered by ETA.
	ListTasks(ctx context.Context) ([]*core.Task, error)
}

// Stores bundles every store backed by one database instance.
type Stores struct {
	Jobs      JobRepository
	Documents DocumentStore
	Vectors   VectorStore
	Graph     GraphStore
	Staging   StagingStore
	Tasks     TaskStore

	// Close closes the shared backend.
	Close func() error
}
