// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/ingestion"
	"github.com/quarryhq/quarry/queue"
	"github.com/quarryhq/quarry/storage"
	"github.com/quarryhq/quarry/transcribe"
)

// Task names registered on the queue.
const (
	TaskPoll    = "job.poll"
	TaskProcess = "job.process"
	TaskWrite   = "job.write"
)

// Default coordinator tuning.
const (
	DefaultPollBaseDelay   = 5 * time.Second
	DefaultPollMaxDelay    = 5 * time.Minute
	DefaultPollTimeout     = time.Hour
	DefaultWriteAttempts   = 3
	DefaultWriteRetryDelay = time.Second
	DefaultLeaseTTL        = 2 * time.Minute
)

// Config tunes the coordinator's polling, write retries and lease.
type Config struct {
	// PollBaseDelay is the wait before the first external poll.
	PollBaseDelay time.Duration
	// PollMaxDelay caps the exponential poll backoff.
	PollMaxDelay time.Duration
	// PollTimeout bounds the total time spent waiting on an external job.
	PollTimeout time.Duration
	// WriteAttempts bounds retries of each store write.
	WriteAttempts int
	// WriteRetryDelay is the base delay between store write retries.
	WriteRetryDelay time.Duration
	// LeaseTTL is how long a worker's write lease lasts without renewal.
	LeaseTTL time.Duration
	// WorkerID identifies this process as a lease owner.
	WorkerID string
}

// DefaultConfig returns a config with production defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		PollBaseDelay:   DefaultPollBaseDelay,
		PollMaxDelay:    DefaultPollMaxDelay,
		PollTimeout:     DefaultPollTimeout,
		WriteAttempts:   DefaultWriteAttempts,
		WriteRetryDelay: DefaultWriteRetryDelay,
		LeaseTTL:        DefaultLeaseTTL,
		WorkerID:        hostname + "-" + uuid.NewString()[:8],
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.PollBaseDelay <= 0 {
		c.PollBaseDelay = d.PollBaseDelay
	}
	if c.PollMaxDelay <= 0 {
		c.PollMaxDelay = d.PollMaxDelay
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = d.WriteAttempts
	}
	if c.WriteRetryDelay <= 0 {
		c.WriteRetryDelay = d.WriteRetryDelay
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = d.LeaseTTL
	}
	if c.WorkerID == "" {
		c.WorkerID = d.WorkerID
	}
}

// Coordinator drives ingestion jobs through their lifecycle.
type Coordinator struct {
	stores      *storage.Stores
	transcriber transcribe.Client
	pipeline    *ingestion.Pipeline
	queue       queue.Queue
	config      Config
	logger      *slog.Logger
}

// NewCoordinator wires the coordinator and registers its task handlers on
// the queue. Call queue.Recover afterwards to resume interrupted jobs.
func NewCoordinator(
	stores *storage.Stores,
	transcriber transcribe.Client,
	pipeline *ingestion.Pipeline,
	q queue.Queue,
	config Config,
) (*Coordinator, error) {
	if stores == nil {
		return nil, ErrStoresRequired
	}
	if transcriber == nil {
		return nil, ErrTranscriberRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if q == nil {
		return nil, ErrQueueRequired
	}
	config.fillDefaults()

	c := &Coordinator{
		stores:      stores,
		transcriber: transcriber,
		pipeline:    pipeline,
		queue:       q,
		config:      config,
		logger:      slog.Default().With("component", "coordinator"),
	}

	q.Register(TaskPoll, c.handlePoll)
	q.Register(TaskProcess, c.handleProcess)
	q.Register(TaskWrite, c.handleWrite)
	q.OnExhausted(c.handleExhausted)

	return c, nil
}

// Submit creates an ingestion job for sourceRef, or returns the existing
// active job for the same (source, idempotency key) pair. HTTP and HTTPS
// references go through the external transcription service; anything else
// is read as a local file path.
func (c *Coordinator) Submit(ctx context.Context, sourceRef, idempotencyKey string, options core.JobOptions) (core.ID, error) {
	if sourceRef == "" {
		return 0, core.Permanent(core.ErrEmptySourceRef)
	}

	submissionKey := core.SubmissionKey(sourceRef, idempotencyKey)
	if active, err := c.stores.Jobs.GetActiveJob(ctx, submissionKey); err == nil {
		c.logger.Debug("submission matches active job",
			"job_id", active.Id, "source_ref", sourceRef)
		return active.Id, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	id, err := c.stores.Jobs.NextJobID()
	if err != nil {
		return 0, err
	}
	job := &core.Job{
		Id:             id,
		SourceRef:      sourceRef,
		IdempotencyKey: idempotencyKey,
		State:          core.JobStateSubmitted,
		Options:        options,
	}
	if err := c.stores.Jobs.CreateJob(ctx, job); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a race with a concurrent identical submission.
			if active, aerr := c.stores.Jobs.GetActiveJob(ctx, submissionKey); aerr == nil {
				return active.Id, nil
			}
		}
		return 0, err
	}
	c.logger.Info("job submitted",
		"job_id", job.Id, "source_ref", sourceRef)

	if isExternalSource(sourceRef) {
		return job.Id, c.startExternal(ctx, job)
	}
	return job.Id, c.startLocal(ctx, job)
}

// isExternalSource reports whether the reference needs the transcription
// service. URLs do; everything else is treated as a local file path.
func isExternalSource(sourceRef string) bool {
	return strings.HasPrefix(sourceRef, "http://") || strings.HasPrefix(sourceRef, "https://")
}

// startExternal submits the transcription job and schedules the first poll.
func (c *Coordinator) startExternal(ctx context.Context, job *core.Job) error {
	externalID, err := c.transcriber.SubmitJob(ctx, job.SourceRef)
	if err != nil {
		c.failJob(ctx, job, core.ReasonExternalJobFailed,
			fmt.Sprintf("transcription submission failed: %v", err))
		return nil
	}

	job.ExternalJobId = externalID
	job.State = core.JobStateExternalPending
	job.PollStartedAt = time.Now().UTC()
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	_, err = c.queue.Enqueue(ctx, TaskPoll, storage.MarshalID(job.Id),
		time.Now().Add(pollDelay(0, c.config.PollBaseDelay, c.config.PollMaxDelay)))
	return err
}

// startLocal reads the file, stages its text and schedules processing.
func (c *Coordinator) startLocal(ctx context.Context, job *core.Job) error {
	data, err := os.ReadFile(job.SourceRef)
	if err != nil {
		c.failJob(ctx, job, core.ReasonPipelineFailed,
			fmt.Sprintf("cannot read source: %v", err))
		return nil
	}

	if err := c.stores.Staging.PutRawText(ctx, job.Id, string(data)); err != nil {
		return err
	}
	job.State = core.JobStateContentReady
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	_, err = c.queue.Enqueue(ctx, TaskProcess, storage.MarshalID(job.Id), time.Time{})
	return err
}

// Cancel requests cancellation of a job. The request takes effect at the
// job's next checkpoint; work already written is not rolled back.
func (c *Coordinator) Cancel(ctx context.Context, jobID core.ID) error {
	job, err := c.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, job.State)
	}
	job.CancelRequested = true
	return c.stores.Jobs.UpdateJob(ctx, job)
}

// Reindex replays the write phase of a job from its staged artifacts. Only
// jobs that failed the vector write or ended degraded can be re-indexed;
// everything up to WRITING is deterministic from the staged data, so no
// re-chunking or re-extraction happens.
func (c *Coordinator) Reindex(ctx context.Context, jobID core.ID) error {
	job, err := c.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	replayable := job.State == core.JobStateIndexedDegraded ||
		(job.State == core.JobStateFailed && job.Reason == core.ReasonWriteVectorsFailed)
	if !replayable {
		return fmt.Errorf("%w: state %s reason %q", ErrNotReindexable, job.State, job.Reason)
	}
	if _, err := c.stores.Staging.GetArtifacts(ctx, jobID); err != nil {
		return fmt.Errorf("%w: no staged artifacts", ErrNotReindexable)
	}

	job.State = core.JobStateWriting
	job.Reason = ""
	job.LastError = ""
	job.CancelRequested = false
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	_, err = c.queue.Enqueue(ctx, TaskWrite, storage.MarshalID(jobID), time.Time{})
	return err
}

// GetJob returns the job's current state.
func (c *Coordinator) GetJob(ctx context.Context, jobID core.ID) (*core.Job, error) {
	return c.stores.Jobs.GetJob(ctx, jobID)
}

// ListChunks returns a job's chunks in document order.
func (c *Coordinator) ListChunks(ctx context.Context, jobID core.ID) ([]core.Chunk, error) {
	return c.stores.Documents.ListChunks(ctx, jobID)
}

// ListConcepts returns a job's concepts.
func (c *Coordinator) ListConcepts(ctx context.Context, jobID core.ID) ([]core.Concept, error) {
	return c.stores.Graph.ListConcepts(ctx, jobID)
}

// ListTriples returns a job's relation triples.
func (c *Coordinator) ListTriples(ctx context.Context, jobID core.ID) ([]core.Triple, error) {
	return c.stores.Graph.ListTriples(ctx, jobID)
}

// Invalidate cascade-deletes a terminal job's artifacts from all three
// stores, plus its staging data. The job record itself is retained for
// audit.
func (c *Coordinator) Invalidate(ctx context.Context, jobID core.ID) error {
	job, err := c.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Terminal() {
		return fmt.Errorf("cannot invalidate active job %d in state %s", jobID, job.State)
	}

	if err := c.stores.Vectors.DeleteByJob(ctx, jobID); err != nil {
		return err
	}
	if err := c.stores.Graph.DeleteByJob(ctx, jobID); err != nil {
		return err
	}
	if err := c.stores.Documents.DeleteChunks(ctx, jobID); err != nil {
		return err
	}
	if err := c.stores.Staging.DeleteStaging(ctx, jobID); err != nil {
		return err
	}
	c.logger.Info("job artifacts invalidated", "job_id", jobID)
	return nil
}

// failJob records a terminal failure. Storage faults while recording are
// logged; there is nothing better to do with them here.
func (c *Coordinator) failJob(ctx context.Context, job *core.Job, reason, message string) {
	job.State = core.JobStateFailed
	job.Reason = reason
	job.LastError = message
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		c.logger.Error("failed to record job failure",
			"job_id", job.Id, "reason", reason, "err", err)
		return
	}
	c.logger.Warn("job failed",
		"job_id", job.Id, "reason", reason, "error", message)
}

// cancelJob finalizes a cancellation request and drops staged data.
func (c *Coordinator) cancelJob(ctx context.Context, job *core.Job) {
	job.State = core.JobStateCancelled
	job.Reason = core.ReasonCancelled
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		c.logger.Error("failed to record job cancellation",
			"job_id", job.Id, "err", err)
		return
	}
	if err := c.stores.Staging.DeleteStaging(ctx, job.Id); err != nil {
		c.logger.Error("failed to drop staging for cancelled job",
			"job_id", job.Id, "err", err)
	}
	c.logger.Info("job cancelled", "job_id", job.Id)
}
