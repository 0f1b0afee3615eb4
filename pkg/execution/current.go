package execution

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dukex/watcher/pkg/models"
)

var (
	ErrSealed           = errors.New("cannot register execution, executions are sealed")
	ErrAlreadyExecuting = errors.New("watch is already executing")
	ErrDuplicateID      = errors.New("execution id already registered")
)

// Execution is an in-flight firing as seen by the tracker.
type Execution interface {
	WatchID() string
	Snapshot() models.ExecutionSnapshot
}

// CurrentExecutions tracks in-flight executions by id. One mutex guards the
// map and the sealed flag; the condition variable is signaled when the map
// becomes empty.
type CurrentExecutions struct {
	mu         sync.Mutex
	empty      *sync.Cond
	executions map[string]Execution
	sealed     bool
}

func NewCurrentExecutions() *CurrentExecutions {
	c := &CurrentExecutions{executions: make(map[string]Execution)}
	c.empty = sync.NewCond(&c.mu)

	return c
}

// Put registers an execution. It fails once the tracker is sealed.
func (c *CurrentExecutions) Put(id Wid, execution Execution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.put(id, execution)
}

// PutExclusive registers an execution unless another one of the same watch is
// in flight.
func (c *CurrentExecutions) PutExclusive(id Wid, execution Execution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return ErrSealed
	}

	for _, current := range c.executions {
		if current.WatchID() == id.WatchID() {
			return fmt.Errorf("%w [%s]", ErrAlreadyExecuting, id.WatchID())
		}
	}

	return c.put(id, execution)
}

func (c *CurrentExecutions) put(id Wid, execution Execution) error {
	if c.sealed {
		return ErrSealed
	}

	if _, exists := c.executions[id.String()]; exists {
		return fmt.Errorf("%w [%s]", ErrDuplicateID, id)
	}

	c.executions[id.String()] = execution

	return nil
}

// Remove deregisters an execution and wakes drain waiters once nothing is left.
func (c *CurrentExecutions) Remove(id Wid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.executions, id.String())

	if len(c.executions) == 0 {
		c.empty.Broadcast()
	}
}

// SealAndAwaitEmpty rejects new registrations and blocks until every
// execution is removed, maxWait elapses or ctx is done. It returns the number
// of executions still in flight.
func (c *CurrentExecutions) SealAndAwaitEmpty(ctx context.Context, maxWait time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sealed = true

	if len(c.executions) == 0 {
		return 0
	}

	expired := false
	wake := func() {
		c.mu.Lock()
		expired = true
		c.mu.Unlock()
		c.empty.Broadcast()
	}

	timer := time.AfterFunc(maxWait, wake)
	defer timer.Stop()

	stop := context.AfterFunc(ctx, wake)
	defer stop()

	for len(c.executions) > 0 && !expired {
		c.empty.Wait()
	}

	return len(c.executions)
}

// Unseal accepts registrations again.
func (c *CurrentExecutions) Unseal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sealed = false
}

func (c *CurrentExecutions) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sealed
}

func (c *CurrentExecutions) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.executions)
}

// All iterates over a copy taken when iteration starts.
func (c *CurrentExecutions) All() iter.Seq2[string, Execution] {
	c.mu.Lock()
	executions := make(map[string]Execution, len(c.executions))
	for id, execution := range c.executions {
		executions[id] = execution
	}
	c.mu.Unlock()

	return func(yield func(string, Execution) bool) {
		for id, execution := range executions {
			if !yield(id, execution) {
				return
			}
		}
	}
}

// Snapshots returns the in-flight executions, longest running first.
func (c *CurrentExecutions) Snapshots() []models.ExecutionSnapshot {
	snapshots := make([]models.ExecutionSnapshot, 0)
	for _, execution := range c.All() {
		snapshots = append(snapshots, execution.Snapshot())
	}

	slices.SortFunc(snapshots, func(a, b models.ExecutionSnapshot) int {
		if n := a.ExecutionTime.Compare(b.ExecutionTime); n != 0 {
			return n
		}

		return cmp.Compare(a.WatchRecordID, b.WatchRecordID)
	})

	return snapshots
}
