package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TaskFunc is the body of a Task.
type TaskFunc func(ctx context.Context)

// =============================================================================
// Task: A schedulable unit of work with a completion signal
// =============================================================================

// Task is a unit of deferred work. It is shared by pointer: the caller keeps a
// reference to wait on it while a queue holds another, and the same instance
// may be submitted any number of times.
//
// The completion gate starts open, so waiting on a task that was never
// submitted returns immediately. Producers close it with ResetWaitBlock right
// before queuing; the worker opens it again once a non-keep execution ends.
type Task struct {
	id   string
	name string
	fn   TaskFunc
	keep atomic.Bool

	done       *Gate
	executions atomic.Int64
}

// NewTask creates a task that runs fn once per submission.
func NewTask(name string, fn TaskFunc) *Task {
	return &Task{
		id:   uuid.NewString(),
		name: name,
		fn:   fn,
		done: NewGate(true),
	}
}

// NewKeepTask creates a task that is re-submitted after every execution until
// SetKeep(false) is called.
func NewKeepTask(name string, fn TaskFunc) *Task {
	t := NewTask(name, fn)
	t.keep.Store(true)
	return t
}

// ID returns the unique identifier assigned at construction.
func (t *Task) ID() string { return t.id }

// Name returns the task name. Names are not required to be unique.
func (t *Task) Name() string { return t.name }

// Keep reports whether the task is re-submitted after execution.
func (t *Task) Keep() bool { return t.keep.Load() }

// SetKeep sets the re-submission flag. It is safe to call from the task body.
func (t *Task) SetKeep(keep bool) { t.keep.Store(keep) }

// Executions returns how many times the body has finished running.
func (t *Task) Executions() int64 { return t.executions.Load() }

// Run invokes the task body once.
func (t *Task) Run(ctx context.Context) {
	defer t.executions.Add(1)
	if t.fn != nil {
		t.fn(ctx)
	}
}

// ResetWaitBlock closes the completion gate so new waiters block until the
// next execution completes.
func (t *Task) ResetWaitBlock() { t.done.Close() }

// ReleaseWaitBlock opens the completion gate.
func (t *Task) ReleaseWaitBlock() { t.done.Open() }

// WaitUntilComplete blocks until the completion gate opens. A negative
// timeout waits indefinitely and always returns true; otherwise false is
// returned when the timeout elapses first.
func (t *Task) WaitUntilComplete(timeout time.Duration) bool {
	return t.done.Wait(timeout)
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	if t.done.WaitContext(ctx, -1) {
		return nil
	}
	return ctx.Err()
}

// IsComplete reports whether the completion gate is open.
func (t *Task) IsComplete() bool { return t.done.IsOpen() }
