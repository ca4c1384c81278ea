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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quarryhq/quarry/ai"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// Config holds configuration for the re-embedding operation.
type Config struct {
	// ModelVersion is the target model version to write vectors under.
	ModelVersion string

	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults. The target
// model version still has to be set by the caller.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder migrates the vector index of every indexed job to a new
// embedding model version.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(stores *storage.Stores, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ModelVersion == "" {
		return nil, ErrModelVersionRequired
	}

	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(stores.Vectors, embedder, config.ModelVersion, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(stores.Jobs, stores.Documents, config.BatchSize),
	}, nil
}

// Run executes the re-embedding operation over every indexed job.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	totalChunks, err := r.iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	if totalChunks == 0 {
		fmt.Fprintf(r.progress, "No indexed chunks found (0 chunks)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Re-embedding %d chunks under model version %q (batch size: %d)\n",
		totalChunks, r.config.ModelVersion, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, totalChunks, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(chunks []core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(chunks)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Re-embedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		totalChunks, elapsed.Round(time.Second), float64(totalChunks)/elapsed.Seconds())

	return nil
}
