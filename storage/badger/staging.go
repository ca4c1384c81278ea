package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// StagingStore implements storage.StagingStore for BadgerDB. It holds the
// raw text and pipeline artifacts of in-flight jobs so a crashed worker
// never forces a re-fetch or a full re-process.
type StagingStore struct {
	backend *Backend
}

var _ storage.StagingStore = (*StagingStore)(nil)

// NewStagingStore creates a new StagingStore.
func NewStagingStore(backend *Backend) *StagingStore {
	return &StagingStore{backend: backend}
}

// PutRawText stages the retrieved source text of a job.
func (s *StagingStore) PutRawText(ctx context.Context, jobID core.ID, text string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeStagingRawKey(jobID), []byte(text)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRawText retrieves staged text.
func (s *StagingStore) GetRawText(ctx context.Context, jobID core.ID) (string, error) {
	var text string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeStagingRawKey(jobID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	}, false)
	if err != nil {
		return "", err
	}
	return text, nil
}

// PutArtifacts stages the pipeline output of a job.
func (s *StagingStore) PutArtifacts(ctx context.Context, artifacts *core.Artifacts) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeStagingArtifactsKey(artifacts.JobId)
		if err := tx.Set(key, storage.MarshalArtifacts(artifacts)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetArtifacts retrieves staged pipeline output.
func (s *StagingStore) GetArtifacts(ctx context.Context, jobID core.ID) (*core.Artifacts, error) {
	var artifacts *core.Artifacts
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeStagingArtifactsKey(jobID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			artifacts, err = storage.UnmarshalArtifacts(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// DeleteStaging drops all staged data of a job.
func (s *StagingStore) DeleteStaging(ctx context.Context, jobID core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeStagingRawKey(jobID)); err != nil {
			return err
		}
		if err := tx.Delete(makeStagingArtifactsKey(jobID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
