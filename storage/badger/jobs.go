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


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// NextJobID allocates a new unique job identifier.
func (r *JobRepository) NextJobID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// CreateJob persists a new job and registers its submission key.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		activeKey := makeActiveJobKey(core.SubmissionKey(job.SourceRef, job.IdempotencyKey))
		if _, err := tx.Get(activeKey); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
		job.UpdatedAt = now

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Set(activeKey, storage.MarshalID(job.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateJob persists the job's current state. Terminal transitions release
// the submission key so the same (source, idempotency key) pair can be
// submitted again.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.Job) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.Id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		job.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}

		if job.Terminal() {
			activeKey := makeActiveJobKey(core.SubmissionKey(job.SourceRef, job.IdempotencyKey))
			if err := tx.Delete(activeKey); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			job, err = storage.UnmarshalJob(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetActiveJob resolves the submission index to the job it points at.
func (r *JobRepository) GetActiveJob(ctx context.Context, submissionKey core.ID) (*core.Job, error) {
	var jobID core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeActiveJobKey(submissionKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			jobID, err = storage.UnmarshalID(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return r.GetJob(ctx, jobID)
}

// ListJobs returns all jobs ordered by ID.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.Job, error) {
	var jobs []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				job, err := storage.UnmarshalJob(val)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// AcquireLease claims the single-writer lease for a job. The lease entry
// carries a BadgerDB TTL, so an abandoned lease expires on its own.
func (r *JobRepository) AcquireLease(ctx context.Context, jobID core.ID, owner string, ttl time.Duration) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(jobID)
		item, err := tx.Get(key)
		if err == nil {
			holder, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(holder) != owner {
				return storage.ErrJobLeaseHeld
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		entry := badger.NewEntry(key, []byte(owner)).WithTTL(ttl)
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ReleaseLease releases the lease if owner holds it.
func (r *JobRepository) ReleaseLease(ctx context.Context, jobID core.ID, owner string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(jobID)
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		holder, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(holder) != owner {
			return nil
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
