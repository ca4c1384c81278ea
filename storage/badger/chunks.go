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

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
// Chunks are stored by ID with a per-job secondary index ordered by
// sequence index.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{backend: backend}
}

// PutChunks upserts all chunks atomically.
func (s *DocumentStore) PutChunks(ctx context.Context, chunks []core.Chunk) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i := range chunks {
			chunk := &chunks[i]
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			indexKey := makeChunkJobKey(chunk.JobId, chunk.SequenceIndex)
			if err := tx.Set(indexKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a chunk by ID.
func (s *DocumentStore) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			chunk, err = storage.UnmarshalChunk(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// ListChunks returns a job's chunks ordered by sequence index. The index
// keys sort by sequence, so iteration order is document order.
func (s *DocumentStore) ListChunks(ctx context.Context, jobID core.ID) ([]core.Chunk, error) {
	var chunks []core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := s.chunkIDs(tx, jobID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			item, err := tx.Get(makeChunkKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, *chunk)
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
	return chunks, nil
}

// MarkIndexed sets the indexed flag on every chunk of a job.
func (s *DocumentStore) MarkIndexed(ctx context.Context, jobID core.ID, indexed bool) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := s.chunkIDs(tx, jobID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			key := makeChunkKey(id)
			item, err := tx.Get(key)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			var chunk *core.Chunk
			err = item.Value(func(val []byte) error {
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunk.Indexed = indexed
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteChunks removes all chunks of a job, including the index entries.
func (s *DocumentStore) DeleteChunks(ctx context.Context, jobID core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkJobKey(jobID)
		iter := tx.NewIterator(opts)

		var indexKeys [][]byte
		var ids []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			indexKeys = append(indexKeys, item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				id, err := storage.UnmarshalID(val)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				iter.Close()
				return err
			}
		}
		iter.Close()

		for _, id := range ids {
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// chunkIDs reads a job's chunk IDs in sequence order from the index.
func (s *DocumentStore) chunkIDs(tx *badger.Txn, jobID core.ID) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialChunkJobKey(jobID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
