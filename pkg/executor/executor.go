// Package executor runs watch executions on a bounded pool of workers,
// separate from the goroutines that detect trigger firings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
)

var (
	ErrRejected = errors.New("executor queue is full")
	ErrShutdown = errors.New("executor is shut down")
)

// Task is one unit of work.
type Task interface {
	Run()
}

// TaskFunc adapts a function to Task.
type TaskFunc func()

func (f TaskFunc) Run() {
	f()
}

// Executor queues tasks without blocking the submitter. Workers are started
// lazily up to the pool size and live until Shutdown.
type Executor struct {
	logger        *slog.Logger
	poolSize      int
	queueCapacity int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	workers  int
	idle     int
	active   int
	largest  int
	shutdown bool
	done     sync.WaitGroup
}

// New creates an executor. A queueCapacity of zero leaves the queue unbounded.
func New(logger *slog.Logger, poolSize, queueCapacity int) *Executor {
	if poolSize <= 0 {
		poolSize = 1
	}

	e := &Executor{
		logger:        logger.With("module", "executor"),
		poolSize:      poolSize,
		queueCapacity: queueCapacity,
	}
	e.cond = sync.NewCond(&e.mu)

	return e
}

// Execute queues task. It only fails when the queue is at capacity or the
// executor is shut down.
func (e *Executor) Execute(task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return ErrShutdown
	}

	if e.queueCapacity > 0 && len(e.queue) >= e.queueCapacity {
		return fmt.Errorf("%w: %d tasks queued", ErrRejected, len(e.queue))
	}

	e.queue = append(e.queue, task)

	if len(e.queue) > e.idle && e.workers < e.poolSize {
		e.workers++
		e.largest = max(e.largest, e.workers)
		e.done.Add(1)

		go e.work()
	}

	e.cond.Signal()

	return nil
}

func (e *Executor) work() {
	defer e.done.Done()

	for {
		e.mu.Lock()

		for len(e.queue) == 0 && !e.shutdown {
			e.idle++
			e.cond.Wait()
			e.idle--
		}

		if len(e.queue) == 0 {
			e.workers--
			e.mu.Unlock()

			return
		}

		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.active++
		e.mu.Unlock()

		e.run(task)

		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}
}

func (e *Executor) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	task.Run()
}

// QueueSize returns the number of tasks waiting for a worker.
func (e *Executor) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.queue)
}

// QueuedTasks returns a copy of the waiting tasks in queue order.
func (e *Executor) QueuedTasks() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.queue)
}

// LargestPoolSize is the most workers that ever existed at once.
func (e *Executor) LargestPoolSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.largest
}

// ActiveCount is the number of workers running a task.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.active
}

// Drain removes and returns every queued task.
func (e *Executor) Drain() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	drained := e.queue
	e.queue = nil

	return drained
}

// Shutdown rejects new tasks and waits for the workers to finish what is
// queued, or for ctx to be done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.shutdown = true
	e.cond.Broadcast()
	e.mu.Unlock()

	stopped := make(chan struct{})

	go func() {
		e.done.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor workers still running: %w", ctx.Err())
	}
}

// Restart accepts tasks again after Shutdown. Workers are started on demand
// by the next Execute.
func (e *Executor) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.shutdown = false
}
