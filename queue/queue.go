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


package queue

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/quarryhq/quarry/core"
	"github.com/quarryhq/quarry/storage"
)

const (
	// DefaultMaxAttempts bounds retries of a failing task.
	DefaultMaxAttempts = 3

	// defaultRetryDelay spaces out retries of a failed task. The handler
	// layer does its own backoff for domain-level waits; this only covers
	// handler faults.
	defaultRetryDelay = 2 * time.Second
)

// Handler processes one claimed task. A nil return deletes the task; an
// error return retries it until MaxAttempts is exhausted.
type Handler func(ctx context.Context, task *core.Task) error

// ExhaustedFunc observes a task that failed its final attempt, just before
// the queue deletes it. err is the handler's last error.
type ExhaustedFunc func(ctx context.Context, task *core.Task, err error)

// Queue schedules durable tasks for asynchronous execution.
type Queue interface {
	// Register binds a handler to a task name. Must be called before any
	// task with that name is enqueued or recovered.
	Register(name string, handler Handler)

	// OnExhausted registers a callback invoked when a task burns through
	// all its attempts. The queue deletes the task either way; the callback
	// is the owner's chance to record the loss somewhere durable.
	OnExhausted(fn ExhaustedFunc)

	// Enqueue persists a task and schedules it to run at eta. A zero eta
	// means as soon as a worker is free. Returns the task ID.
	Enqueue(ctx context.Context, name string, payload []byte, eta time.Time) (string, error)

	// Recover reloads persisted tasks after a restart and schedules them.
	Recover(ctx context.Context) error

	// Close stops scheduling and waits for running handlers to finish.
	Close() error
}

// LocalQueue runs tasks on an in-process worker pool, persisting every
// task to the task store first.
type LocalQueue struct {
	store      storage.TaskStore
	pool       *ants.Pool
	logger     *slog.Logger
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	handlers  map[string]Handler
	exhausted ExhaustedFunc
	timers    map[string]*time.Timer
	closed    bool
	running   sync.WaitGroup
}

var _ Queue = (*LocalQueue)(nil)

// Option configures a LocalQueue.
type Option func(*localQueueConfig)

type localQueueConfig struct {
	poolSize   int
	logger     *slog.Logger
	retryDelay time.Duration
}

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *localQueueConfig) {
		if size >= 1 {
			c.poolSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *localQueueConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryDelay sets the base delay between attempts of a failed task.
func WithRetryDelay(d time.Duration) Option {
	return func(c *localQueueConfig) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// NewLocalQueue creates a queue backed by the given task store.
func NewLocalQueue(store storage.TaskStore, opts ...Option) (*LocalQueue, error) {
	if store == nil {
		return nil, ErrTaskStoreRequired
	}

	cfg := &localQueueConfig{
		poolSize:   runtime.NumCPU() / 2,
		logger:     slog.Default(),
		retryDelay: defaultRetryDelay,
	}
	if cfg.poolSize < 1 {
		cfg.poolSize = 1
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := ants.NewPool(cfg.poolSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LocalQueue{
		store:      store,
		pool:       pool,
		logger:     cfg.logger.With("component", "queue"),
		retryDelay: cfg.retryDelay,
		ctx:        ctx,
		cancel:     cancel,
		handlers:   make(map[string]Handler),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Register binds a handler to a task name.
func (q *LocalQueue) Register(name string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = handler
}

// OnExhausted registers the callback for tasks that run out of attempts.
func (q *LocalQueue) OnExhausted(fn ExhaustedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.exhausted = fn
}

// Enqueue persists a task and schedules it.
func (q *LocalQueue) Enqueue(ctx context.Context, name string, payload []byte, eta time.Time) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	if _, ok := q.handlers[name]; !ok {
		q.mu.Unlock()
		return "", ErrUnknownTask
	}
	q.mu.Unlock()

	task := &core.Task{
		Id:          uuid.NewString(),
		Name:        name,
		Payload:     payload,
		ETA:         eta,
		MaxAttempts: DefaultMaxAttempts,
	}
	if err := q.store.PutTask(ctx, task); err != nil {
		return "", err
	}

	q.schedule(task)
	return task.Id, nil
}

// Recover reloads persisted tasks and schedules them. Tasks whose ETA has
// passed run immediately.
func (q *LocalQueue) Recover(ctx context.Context) error {
	tasks, err := q.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		q.logger.Info("recovered task",
			"task_id", task.Id, "name", task.Name, "eta", task.ETA)
		q.schedule(task)
	}
	return nil
}

// Close stops the queue. Scheduled-but-not-started tasks stay in the task
// store and run after the next Recover.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.cancel()
	q.running.Wait()
	q.pool.Release()
	return nil
}

// schedule arms a timer that submits the task to the pool at its ETA.
func (q *LocalQueue) schedule(task *core.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	delay := time.Until(task.ETA)
	if delay < 0 {
		delay = 0
	}

	q.timers[task.Id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, task.Id)
		if q.closed {
			q.mu.Unlock()
			return
		}
		q.running.Add(1)
		q.mu.Unlock()

		if err := q.pool.Submit(func() {
			defer q.running.Done()
			q.run(task)
		}); err != nil {
			q.running.Done()
			q.logger.Error("failed to submit task", "task_id", task.Id, "err", err)
		}
	})
}

// run executes one task attempt and applies the retry policy.
func (q *LocalQueue) run(task *core.Task) {
	q.mu.Lock()
	handler, ok := q.handlers[task.Name]
	q.mu.Unlock()
	if !ok {
		q.logger.Error("no handler for task; dropping",
			"task_id", task.Id, "name", task.Name)
		q.deleteTask(task)
		return
	}

	err := handler(q.ctx, task)
	if err == nil {
		q.deleteTask(task)
		return
	}

	task.Attempts++
	if task.Attempts >= task.MaxAttempts {
		q.logger.Error("task exhausted retries",
			"task_id", task.Id, "name", task.Name,
			"attempts", task.Attempts, "err", err)
		q.mu.Lock()
		exhausted := q.exhausted
		q.mu.Unlock()
		if exhausted != nil {
			exhausted(q.ctx, task, err)
		}
		q.deleteTask(task)
		return
	}

	task.ETA = time.Now().UTC().Add(q.retryDelay * time.Duration(task.Attempts))
	q.logger.Warn("task failed; retrying",
		"task_id", task.Id, "name", task.Name,
		"attempt", task.Attempts, "eta", task.ETA, "err", err)
	if err := q.store.PutTask(q.ctx, task); err != nil {
		q.logger.Error("failed to persist task retry", "task_id", task.Id, "err", err)
	}
	q.schedule(task)
}

func (q *LocalQueue) deleteTask(task *core.Task) {
	if err := q.store.DeleteTask(context.Background(), task.Id); err != nil {
		q.logger.Error("failed to delete task", "task_id", task.Id, "err", err)
	}
}
