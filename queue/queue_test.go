package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
	"github.com/quarryhq/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*LocalQueue, *storage.Stores) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	q, err := NewLocalQueue(stores.Tasks, WithPoolSize(2),
		WithRetryDelay(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, stores
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueueRunsHandler(t *testing.T) {
	q, stores := newTestQueue(t)

	var ran atomic.Int32
	var gotPayload atomic.Value
	q.Register("test.task", func(ctx context.Context, task *core.Task) error {
		gotPayload.Store(string(task.Payload))
		ran.Add(1)
		return nil
	})

	id, err := q.Enqueue(context.Background(), "test.task", []byte("hello"), time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 1 })
	assert.Equal(t, "hello", gotPayload.Load())

	// Completed tasks are removed from the store.
	waitFor(t, 2*time.Second, func() bool {
		tasks, err := stores.Tasks.ListTasks(context.Background())
		return err == nil && len(tasks) == 0
	})
}

func TestEnqueueUnknownTask(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Enqueue(context.Background(), "never.registered", nil, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestEnqueueHonorsETA(t *testing.T) {
	q, _ := newTestQueue(t)

	var ranAt atomic.Value
	q.Register("test.task", func(ctx context.Context, task *core.Task) error {
		ranAt.Store(time.Now())
		return nil
	})

	start := time.Now()
	eta := start.Add(80 * time.Millisecond)
	_, err := q.Enqueue(context.Background(), "test.task", nil, eta)
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return ranAt.Load() != nil })
	assert.GreaterOrEqual(t, ranAt.Load().(time.Time).Sub(start), 70*time.Millisecond)
}

func TestFailedTaskRetries(t *testing.T) {
	q, _ := newTestQueue(t)

	var attempts atomic.Int32
	q.Register("test.flaky", func(ctx context.Context, task *core.Task) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient hiccup")
		}
		return nil
	})

	_, err := q.Enqueue(context.Background(), "test.flaky", nil, time.Time{})
	require.NoError(t, err)

	waitFor(t, 10*time.Second, func() bool { return attempts.Load() == 2 })
}

func TestFailedTaskExhaustsAttempts(t *testing.T) {
	q, stores := newTestQueue(t)

	var attempts atomic.Int32
	q.Register("test.broken", func(ctx context.Context, task *core.Task) error {
		attempts.Add(1)
		return errors.New("always fails")
	})

	_, err := q.Enqueue(context.Background(), "test.broken", nil, time.Time{})
	require.NoError(t, err)

	waitFor(t, 10*time.Second, func() bool { return attempts.Load() == DefaultMaxAttempts })

	// The abandoned task is removed from the store.
	waitFor(t, 2*time.Second, func() bool {
		tasks, err := stores.Tasks.ListTasks(context.Background())
		return err == nil && len(tasks) == 0
	})
	assert.Equal(t, int32(DefaultMaxAttempts), attempts.Load())
}

func TestExhaustedTaskReportsToCallback(t *testing.T) {
	q, stores := newTestQueue(t)

	q.Register("test.broken", func(ctx context.Context, task *core.Task) error {
		return errors.New("store offline")
	})

	type report struct {
		name string
		err  error
	}
	var got atomic.Value
	q.OnExhausted(func(ctx context.Context, task *core.Task, err error) {
		got.Store(report{name: task.Name, err: err})
	})

	_, err := q.Enqueue(context.Background(), "test.broken", []byte("p"), time.Time{})
	require.NoError(t, err)

	waitFor(t, 10*time.Second, func() bool { return got.Load() != nil })
	r := got.Load().(report)
	assert.Equal(t, "test.broken", r.name)
	assert.ErrorContains(t, r.err, "store offline")

	// The task is still deleted after the callback fires.
	waitFor(t, 2*time.Second, func() bool {
		tasks, err := stores.Tasks.ListTasks(context.Background())
		return err == nil && len(tasks) == 0
	})
}

func TestRecoverReschedulesPersistedTasks(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	// Simulate a task left behind by a crashed process.
	require.NoError(t, stores.Tasks.PutTask(context.Background(), &core.Task{
		Id:          "orphan",
		Name:        "test.task",
		Payload:     []byte("payload"),
		ETA:         time.Now().Add(-time.Minute),
		MaxAttempts: DefaultMaxAttempts,
	}))

	q, err := NewLocalQueue(stores.Tasks, WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	var ran atomic.Int32
	q.Register("test.task", func(ctx context.Context, task *core.Task) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, q.Recover(context.Background()))
	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 1 })
}

func TestCloseStopsScheduling(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	q, err := NewLocalQueue(stores.Tasks)
	require.NoError(t, err)

	var ran atomic.Int32
	q.Register("test.task", func(ctx context.Context, task *core.Task) error {
		ran.Add(1)
		return nil
	})

	_, err = q.Enqueue(context.Background(), "test.task", nil, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, q.Close())
	assert.Equal(t, int32(0), ran.Load())

	_, err = q.Enqueue(context.Background(), "test.task", nil, time.Time{})
	assert.ErrorIs(t, err, ErrQueueClosed)

	// The unstarted task survives in the store for the next Recover.
	tasks, err := stores.Tasks.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
