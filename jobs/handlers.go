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
	"time"

	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/ingestion"
	"github.com/quarryhq/quarry/storage"
	"github.com/quarryhq/quarry/transcribe"
)

// handlePoll checks the external transcription job and either stages the
// transcript, reschedules itself with backoff, or fails the job.
func (c *Coordinator) handlePoll(ctx context.Context, task *core.Task) error {
	job, err := c.loadJob(ctx, task.Payload)
	if err != nil || job == nil {
		return err
	}
	if job.CancelRequested {
		c.cancelJob(ctx, job)
		return nil
	}

	job.State = core.JobStateExternalPolling
	job.PollCount++
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	result, err := c.transcriber.PollJob(ctx, job.ExternalJobId)
	if err != nil {
		if core.IsPermanent(err) {
			c.failJob(ctx, job, core.ReasonExternalJobFailed,
				fmt.Sprintf("transcription poll rejected: %v", err))
			return nil
		}
		// Transient fault counts as a pending observation.
		return c.reschedulePoll(ctx, job)
	}

	switch result.Status {
	case transcribe.StatusReady:
		if err := c.stores.Staging.PutRawText(ctx, job.Id, result.Text); err != nil {
			return err
		}
		job.State = core.JobStateContentReady
		if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
			return err
		}
		c.logger.Info("transcript ready",
			"job_id", job.Id, "external_job_id", job.ExternalJobId,
			"polls", job.PollCount)
		_, err := c.queue.Enqueue(ctx, TaskProcess, task.Payload, time.Time{})
		return err

	case transcribe.StatusFailed:
		c.failJob(ctx, job, core.ReasonExternalJobFailed,
			fmt.Sprintf("transcription failed: %s", result.Message))
		return nil

	default: // pending
		return c.reschedulePoll(ctx, job)
	}
}

// reschedulePoll returns the job to EXTERNAL_PENDING and books the next
// poll, unless the total wait budget is exhausted.
func (c *Coordinator) reschedulePoll(ctx context.Context, job *core.Job) error {
	if time.Since(job.PollStartedAt) > c.config.PollTimeout {
		c.failJob(ctx, job, core.ReasonExternalJobTimeout,
			fmt.Sprintf("external job %s not finished after %s (%d polls)",
				job.ExternalJobId, c.config.PollTimeout, job.PollCount))
		return nil
	}

	job.State = core.JobStateExternalPending
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	delay := pollDelay(job.PollCount, c.config.PollBaseDelay, c.config.PollMaxDelay)
	_, err := c.queue.Enqueue(ctx, TaskPoll, storage.MarshalID(job.Id), time.Now().Add(delay))
	return err
}

// handleProcess runs the pipeline over the staged text and stages the
// resulting artifacts for the write phase.
func (c *Coordinator) handleProcess(ctx context.Context, task *core.Task) error {
	job, err := c.loadJob(ctx, task.Payload)
	if err != nil || job == nil {
		return err
	}
	if job.CancelRequested {
		c.cancelJob(ctx, job)
		return nil
	}

	job.State = core.JobStateProcessing
	job.AttemptCount++
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	text, err := c.stores.Staging.GetRawText(ctx, job.Id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.failJob(ctx, job, core.ReasonPipelineFailed, "staged text missing")
			return nil
		}
		return err
	}

	artifacts, err := c.pipeline.Run(ctx, ingestion.Request{
		JobID:      job.Id,
		Text:       text,
		Options:    job.Options,
		Checkpoint: c.cancellationCheckpoint(job.Id),
	})
	if err != nil {
		if errors.Is(err, core.ErrCancelled) {
			c.cancelJob(ctx, job)
			return nil
		}
		c.failJob(ctx, job, core.ReasonPipelineFailed,
			fmt.Sprintf("pipeline failed: %v", err))
		return nil
	}

	if err := c.stores.Staging.PutArtifacts(ctx, artifacts); err != nil {
		return err
	}
	job.State = core.JobStateWriting
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}
	c.logger.Info("pipeline complete",
		"job_id", job.Id,
		"chunks", len(artifacts.Chunks),
		"concepts", len(artifacts.Concepts))

	_, err = c.queue.Enqueue(ctx, TaskWrite, task.Payload, time.Time{})
	return err
}

// cancellationCheckpoint re-reads the job between pipeline stages so a
// cancel request stops processing at the next stage boundary.
func (c *Coordinator) cancellationCheckpoint(jobID core.ID) func() error {
	return func() error {
		job, err := c.stores.Jobs.GetJob(context.Background(), jobID)
		if err != nil {
			return nil // storage hiccup; let the stage run
		}
		if job.CancelRequested {
			return core.ErrCancelled
		}
		return nil
	}
}

// handleWrite persists staged artifacts in the fixed store order under the
// job's write lease, applying the compensation policy on partial failure.
func (c *Coordinator) handleWrite(ctx context.Context, task *core.Task) error {
	job, err := c.loadJob(ctx, task.Payload)
	if err != nil || job == nil {
		return err
	}
	if job.CancelRequested {
		c.cancelJob(ctx, job)
		return nil
	}

	if err := c.stores.Jobs.AcquireLease(ctx, job.Id, c.config.WorkerID, c.config.LeaseTTL); err != nil {
		if errors.Is(err, storage.ErrJobLeaseHeld) {
			// Another worker is mid-write on this job. Look again after a
			// fraction of the lease TTL; if that worker finished, the next
			// attempt finds the job terminal and drops the task.
			_, qerr := c.queue.Enqueue(ctx, TaskWrite, task.Payload,
				time.Now().Add(c.config.LeaseTTL/4))
			return qerr
		}
		return err
	}
	defer func() {
		if err := c.stores.Jobs.ReleaseLease(context.Background(), job.Id, c.config.WorkerID); err != nil {
			c.logger.Error("failed to release job lease", "job_id", job.Id, "err", err)
		}
	}()

	artifacts, err := c.stores.Staging.GetArtifacts(ctx, job.Id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.failJob(ctx, job, core.ReasonPipelineFailed, "staged artifacts missing")
			return nil
		}
		return err
	}

	// Documents first: they are the source of truth the other stores
	// reference. A failure here leaves nothing to compensate.
	err = c.retryWrite(ctx, func() error {
		return c.stores.Documents.PutChunks(ctx, artifacts.Chunks)
	})
	if err != nil {
		c.failJob(ctx, job, core.ReasonWriteDocumentsFailed,
			fmt.Sprintf("document write failed: %v", err))
		return nil
	}

	// Vectors second. On exhaustion the job fails, but the chunks stay
	// queryable with indexed=false so Reindex can replay from here.
	err = c.retryWrite(ctx, func() error {
		return c.stores.Vectors.Upsert(ctx, artifacts.Embeddings)
	})
	if err != nil {
		if merr := c.stores.Documents.MarkIndexed(ctx, job.Id, false); merr != nil {
			c.logger.Error("failed to mark chunks unindexed", "job_id", job.Id, "err", merr)
		}
		c.failJob(ctx, job, core.ReasonWriteVectorsFailed,
			fmt.Sprintf("vector write failed: %v", err))
		return nil
	}
	if err := c.stores.Documents.MarkIndexed(ctx, job.Id, true); err != nil {
		return err
	}

	// Graph last. Concepts are enrichment: exhaustion degrades the job
	// instead of failing it, and chunks plus vectors remain queryable.
	if len(artifacts.Concepts) > 0 {
		err = c.retryWrite(ctx, func() error {
			return c.stores.Graph.PutConcepts(ctx, artifacts.Concepts)
		})
		if err != nil {
			job.State = core.JobStateIndexedDegraded
			job.Reason = core.ReasonWriteGraphDegraded
			job.LastError = fmt.Sprintf("graph write failed: %v", err)
			if uerr := c.stores.Jobs.UpdateJob(ctx, job); uerr != nil {
				return uerr
			}
			c.logger.Warn("job indexed degraded",
				"job_id", job.Id, "error", job.LastError)
			return nil
		}
	}

	job.State = core.JobStateIndexed
	job.Reason = ""
	job.LastError = ""
	if err := c.stores.Jobs.UpdateJob(ctx, job); err != nil {
		return err
	}
	c.logger.Info("job indexed",
		"job_id", job.Id,
		"chunks", len(artifacts.Chunks),
		"embeddings", len(artifacts.Embeddings),
		"concepts", len(artifacts.Concepts))
	return nil
}

// retryWrite retries one store write with linear backoff up to the
// configured attempt bound.
func (c *Coordinator) retryWrite(ctx context.Context, write func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.config.WriteAttempts; attempt++ {
		lastErr = write()
		if lastErr == nil {
			return nil
		}
		if attempt == c.config.WriteAttempts {
			break
		}
		c.logger.Warn("store write failed, retrying",
			"attempt", attempt, "err", lastErr)
		timer := time.NewTimer(c.config.WriteRetryDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// handleExhausted records a terminal failure for a job whose task burned
// through every queue attempt on infrastructure faults. Without it the job
// would sit in a non-terminal state forever while its submission key stays
// active.
func (c *Coordinator) handleExhausted(ctx context.Context, task *core.Task, taskErr error) {
	job, err := c.loadJob(ctx, task.Payload)
	if err != nil || job == nil {
		return
	}

	reason := core.ReasonPipelineFailed
	switch task.Name {
	case TaskPoll:
		reason = core.ReasonExternalJobFailed
	case TaskWrite:
		reason = core.ReasonWriteDocumentsFailed
	}
	c.failJob(ctx, job, reason,
		fmt.Sprintf("%s task exhausted retries: %v", task.Name, taskErr))
}

// loadJob decodes the task payload and fetches the job. A nil job with nil
// error means the task is stale (job gone or already terminal) and should
// be dropped.
func (c *Coordinator) loadJob(ctx context.Context, payload []byte) (*core.Job, error) {
	jobID, err := storage.UnmarshalID(payload)
	if err != nil {
		c.logger.Error("dropping task with bad payload", "err", err)
		return nil, nil
	}
	job, err := c.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("dropping task for missing job", "job_id", jobID)
			return nil, nil
		}
		return nil, err
	}
	if job.Terminal() {
		c.logger.Debug("dropping task for terminal job",
			"job_id", jobID, "state", job.State)
		return nil, nil
	}
	return job, nil
}
