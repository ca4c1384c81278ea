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


package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/chunker"
	"github.com/quarryhq/quarry/core"
)

const (
	// DefaultStageAttempts bounds retries of a transiently failing stage.
	DefaultStageAttempts = 3
	// DefaultStageTimeout caps the wall-clock time of one stage attempt.
	DefaultStageTimeout = 5 * time.Minute

	defaultRetryBaseDelay = 500 * time.Millisecond
)

// Pipeline transforms raw text into chunks, concepts and embeddings.
// It manages concurrent concept extraction across chunks of a job.
type Pipeline struct {
	counter       chunker.TokenCounter
	provider      ai.AIProvider
	pool          *ants.Pool
	stageAttempts int
	stageTimeout  time.Duration
	retryDelay    time.Duration
	dimension     int
	modelVersion  string
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent concept extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithStageAttempts sets the retry bound for transient stage failures.
func WithStageAttempts(attempts int) Option {
	return func(p *Pipeline) error {
		if attempts > 0 {
			p.stageAttempts = attempts
		}
		return nil
	}
}

// WithStageTimeout sets the per-attempt stage timeout.
func WithStageTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout > 0 {
			p.stageTimeout = timeout
		}
		return nil
	}
}

// WithRetryBaseDelay sets the base delay for stage retry backoff.
// Mainly used by tests to keep retries fast.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(p *Pipeline) error {
		if delay > 0 {
			p.retryDelay = delay
		}
		return nil
	}
}

// WithDimension sets the expected embedding vector length. Zero disables
// the check.
func WithDimension(dimension int) Option {
	return func(p *Pipeline) error {
		p.dimension = dimension
		return nil
	}
}

// WithModelVersion sets the default embedding model version recorded on
// artifacts when a job doesn't override it.
func WithModelVersion(version string) Option {
	return func(p *Pipeline) error {
		p.modelVersion = version
		return nil
	}
}

// NewPipeline creates a new processing pipeline.
func NewPipeline(counter chunker.TokenCounter, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if counter == nil {
		return nil, ErrTokenCounterRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		counter:       counter,
		provider:      provider,
		pool:          pool,
		stageAttempts: DefaultStageAttempts,
		stageTimeout:  DefaultStageTimeout,
		retryDelay:    defaultRetryBaseDelay,
		modelVersion:  "v1",
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Request describes one pipeline run over a job's staged text.
type Request struct {
	JobID core.ID
	Text  string
	// Options carries per-job overrides for chunking, concept skipping and
	// the embedding model version.
	Options core.JobOptions
	// Checkpoint is consulted between stages. Returning an error stops the
	// run; this is how cancellation reaches a job mid-processing.
	Checkpoint func() error
}

// Run executes all stages in order and returns the computed artifacts.
// Chunk, concept and embedding identifiers are deterministic, so re-running
// a job produces identical IDs and overwrites instead of duplicating.
func (p *Pipeline) Run(ctx context.Context, req Request) (*core.Artifacts, error) {
	if err := p.checkpoint(req); err != nil {
		return nil, err
	}

	chunks, err := p.chunkStage(req)
	if err != nil {
		return nil, err
	}
	p.logger.Info("chunked source text",
		"job_id", req.JobID, "chunks", len(chunks))

	if err := p.checkpoint(req); err != nil {
		return nil, err
	}

	var concepts []core.Concept
	if req.Options.SkipConcepts {
		p.logger.Debug("concept extraction skipped by job options", "job_id", req.JobID)
	} else {
		err = p.runStage(ctx, "concepts", func(stageCtx context.Context) error {
			extracted, stageErr := p.extractConcepts(stageCtx, req.JobID, chunks)
			if stageErr != nil {
				return stageErr
			}
			concepts = extracted
			return nil
		})
		if err != nil {
			return nil, err
		}
		p.logger.Info("extracted concepts",
			"job_id", req.JobID, "concepts", len(concepts))
	}

	if err := p.checkpoint(req); err != nil {
		return nil, err
	}

	modelVersion := req.Options.EmbeddingModelVersion
	if modelVersion == "" {
		modelVersion = p.modelVersion
	}
	var embeddings []core.Embedding
	err = p.runStage(ctx, "embeddings", func(stageCtx context.Context) error {
		embedded, stageErr := p.embedChunks(stageCtx, req.JobID, chunks, modelVersion)
		if stageErr != nil {
			return stageErr
		}
		embeddings = embedded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &core.Artifacts{
		JobId:      req.JobID,
		Chunks:     chunks,
		Concepts:   concepts,
		Embeddings: embeddings,
	}, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) checkpoint(req Request) error {
	if req.Checkpoint == nil {
		return nil
	}
	return req.Checkpoint()
}

// chunkStage runs synchronously; chunking is deterministic and local, so a
// retry would change nothing.
func (p *Pipeline) chunkStage(req Request) ([]core.Chunk, error) {
	opts := []chunker.Option{}
	if req.Options.ChunkTokenBudget > 0 {
		opts = append(opts, chunker.WithTokenBudget(req.Options.ChunkTokenBudget))
	}
	if req.Options.ChunkOverlap > 0 {
		opts = append(opts, chunker.WithOverlap(req.Options.ChunkOverlap))
	}
	c := chunker.New(p.counter, opts...)
	return c.Chunk(req.JobID, req.Text)
}

// runStage executes one stage with a per-attempt timeout, retrying
// transient failures with exponential backoff. Permanent failures return
// immediately.
func (p *Pipeline) runStage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.stageAttempts; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
		err := fn(stageCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				p.logger.Debug("stage succeeded after retry",
					"stage", name, "attempt", attempt)
			}
			return nil
		}

		// A stage that ran out of its own time budget is worth retrying;
		// a cancelled parent context is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = core.Transient(err)
		}
		lastErr = err

		if !core.IsTransient(err) {
			return err
		}
		if attempt == p.stageAttempts {
			break
		}

		delay := p.retryDelay << (attempt - 1)
		p.logger.Warn("stage failed, will retry",
			"stage", name, "attempt", attempt, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.logger.Error("stage exhausted retries",
		"stage", name, "attempts", p.stageAttempts, "err", lastErr)
	return lastErr
}
