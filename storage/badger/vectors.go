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
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB with a
// brute-force similarity scan. Vectors are keyed by (job, chunk, model
// version), so upserting the same pair replaces the previous vector.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Upsert stores embeddings, replacing existing vectors for the same
// (chunk, model version) pairs.
func (s *VectorStore) Upsert(ctx context.Context, embeddings []core.Embedding) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i := range embeddings {
			e := &embeddings[i]
			key := makeVectorKey(e.JobId, e.ChunkId, e.ModelVersion)
			if err := tx.Set(key, storage.MarshalEmbedding(e)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Query returns up to topK chunk IDs ranked by similarity to vector,
// highest first. Similarity is the dot product, which equals cosine
// similarity for normalized vectors.
func (s *VectorStore) Query(ctx context.Context, vector []float32, topK int, filter storage.VectorFilter) ([]core.VectorMatch, error) {
	if topK <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []core.VectorMatch
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		if filter.JobId != 0 {
			opts.Prefix = makePartialVectorKey(filter.JobId)
		} else {
			opts.Prefix = []byte(vectorPrefix + ":")
		}
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				embedding, err := storage.UnmarshalEmbedding(val)
				if err != nil {
					return err
				}
				if filter.ModelVersion != "" && embedding.ModelVersion != filter.ModelVersion {
					return nil
				}
				results = append(results, core.VectorMatch{
					ChunkId: embedding.ChunkId,
					Score:   dotProduct(vector, embedding.Vector),
				})
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

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByJob removes every vector belonging to a job.
func (s *VectorStore) DeleteByJob(ctx context.Context, jobID core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialVectorKey(jobID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
