package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// GraphStore implements storage.GraphStore for BadgerDB. Concepts are
// keyed by (job, concept), which keeps per-job scans and cascade deletes
// a single prefix iteration.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{backend: backend}
}

// PutConcepts upserts all concepts atomically.
func (s *GraphStore) PutConcepts(ctx context.Context, concepts []core.Concept) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i := range concepts {
			concept := &concepts[i]
			if err := core.ValidateConcept(concept); err != nil {
				return err
			}
			key := makeConceptKey(concept.JobId, concept.Id)
			if err := tx.Set(key, storage.MarshalConcept(concept)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListConcepts returns a job's concepts, entities before relations, each
// group ordered by label.
func (s *GraphStore) ListConcepts(ctx context.Context, jobID core.ID) ([]core.Concept, error) {
	concepts, err := s.scan(jobID)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(concepts, func(a, b core.Concept) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		if a.Label < b.Label {
			return -1
		}
		if a.Label > b.Label {
			return 1
		}
		return 0
	})
	return concepts, nil
}

// ListTriples returns the relation triples of a job.
func (s *GraphStore) ListTriples(ctx context.Context, jobID core.ID) ([]core.Triple, error) {
	concepts, err := s.scan(jobID)
	if err != nil {
		return nil, err
	}

	var triples []core.Triple
	for _, concept := range concepts {
		if concept.Kind == core.ConceptKindRelation {
			triples = append(triples, concept.Triple)
		}
	}
	return triples, nil
}

// DeleteByJob removes every concept belonging to a job.
func (s *GraphStore) DeleteByJob(ctx context.Context, jobID core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialConceptKey(jobID)
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

func (s *GraphStore) scan(jobID core.ID) ([]core.Concept, error) {
	var concepts []core.Concept
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialConceptKey(jobID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				concept, err := storage.UnmarshalConcept(val)
				if err != nil {
					return err
				}
				concepts = append(concepts, *concept)
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
	return concepts, nil
}
