package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

// TaskStore implements storage.TaskStore for BadgerDB. The queue persists
// every scheduled task here so pending work survives restarts.
type TaskStore struct {
	backend *Backend
}

var _ storage.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a new TaskStore.
func NewTaskStore(backend *Backend) *TaskStore {
	return &TaskStore{backend: backend}
}

// PutTask upserts a task record.
func (s *TaskStore) PutTask(ctx context.Context, task *core.Task) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeTaskKey(task.Id), storage.MarshalTask(task)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteTask removes a completed or abandoned task.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeTaskKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListTasks returns all pending tasks, ordered by ETA.
func (s *TaskStore) ListTasks(ctx context.Context) ([]*core.Task, error) {
	var tasks []*core.Task
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(taskPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				task, err := storage.UnmarshalTask(val)
				if err != nil {
					return err
				}
				tasks = append(tasks, task)
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

	slices.SortFunc(tasks, func(a, b *core.Task) int {
		return a.ETA.Compare(b.ETA)
	})
	return tasks, nil
}
