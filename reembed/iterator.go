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

	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to process in each batch
	DefaultBatchSize = 100
)

// ChunkIterator walks the chunks of every indexed job in batches. Jobs
// that never completed indexing are skipped: their vectors either do not
// exist or will be rebuilt by a re-index run instead.
type ChunkIterator struct {
	jobs      storage.JobRepository
	documents storage.DocumentStore
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch (must be > 0)
func NewChunkIterator(jobs storage.JobRepository, documents storage.DocumentStore, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		jobs:      jobs,
		documents: documents,
		batchSize: batchSize,
	}
}

// eligible reports whether a job's chunks belong to the query surface.
func eligible(job *core.Job) bool {
	return job.State == core.JobStateIndexed || job.State == core.JobStateIndexedDegraded
}

// Count returns the total number of chunks the iterator will visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	jobs, err := it.jobs.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, job := range jobs {
		if !eligible(job) {
			continue
		}
		chunks, err := it.documents.ListChunks(ctx, job.Id)
		if err != nil {
			return 0, err
		}
		total += len(chunks)
	}
	return total, nil
}

// ForEach iterates over the chunks of all indexed jobs, calling fn for
// each batch. A batch never spans two jobs. Iteration stops on the first
// error from fn; context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]core.Chunk) error) error {
	jobs, err := it.jobs.ListJobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if !eligible(job) {
			continue
		}

		chunks, err := it.documents.ListChunks(ctx, job.Id)
		if err != nil {
			return err
		}

		for i := 0; i < len(chunks); i += it.batchSize {
			end := i + it.batchSize
			if end > len(chunks) {
				end = len(chunks)
			}

			if err := fn(chunks[i:end]); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}

	return nil
}
