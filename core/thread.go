package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// ThreadOptions configures a TaskThread.
type ThreadOptions struct {
	// Name identifies the thread in logs.
	Name string

	// Pin binds the thread to logical CPU CPU. Pinning is best effort:
	// failures are logged and the thread runs unpinned.
	Pin bool
	CPU int
}

// TaskThread is a worker bound to one TaskQueue. It runs on a dedicated OS
// thread and keeps claiming tasks until Cancel is called.
type TaskThread struct {
	queue *TaskQueue
	opts  ThreadOptions

	done atomic.Bool

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewTaskThread creates a thread for queue. Call Start to run it.
func NewTaskThread(queue *TaskQueue, opts ThreadOptions) *TaskThread {
	return &TaskThread{queue: queue, opts: opts}
}

// Name returns the thread name.
func (t *TaskThread) Name() string { return t.opts.Name }

// Queue returns the queue this thread consumes.
func (t *TaskThread) Queue() *TaskQueue { return t.queue }

// Start launches the run loop. Starting a running thread is a no-op.
func (t *TaskThread) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.done.Store(false)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.stopped = make(chan struct{})
	t.running = true

	t.queue.registerThread(t)
	go t.run(t.ctx, t.stopped)
}

// IsRunning reports whether the run loop is active.
func (t *TaskThread) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *TaskThread) run(ctx context.Context, stopped chan struct{}) {
	// Never unlocked: the OS thread exits with the goroutine, so a CPU
	// affinity mask set below cannot leak to other goroutines.
	runtime.LockOSThread()
	defer close(stopped)

	logger := t.queue.Logger()
	if t.opts.Pin {
		if err := pinCurrentThread(t.opts.CPU); err != nil {
			logger.Warn("thread pinning failed", F("thread", t.opts.Name), F("cpu", t.opts.CPU), F("error", err))
		}
	}
	logger.Debug("thread started", F("thread", t.opts.Name), F("queue", t.queue.Name()))

	firstTime := true
	for !t.done.Load() {
		if firstTime {
			firstTime = false
			runtime.Gosched()
			continue
		}
		if !t.queue.ExecuteSingleTask(ctx, true, AnyQueueID) && !t.done.Load() {
			runtime.Gosched()
		}
	}

	logger.Debug("thread stopped", F("thread", t.opts.Name), F("queue", t.queue.Name()))
}

// Cancel stops the thread and waits for its run loop to exit. A task already
// claimed runs to completion first. Cancelling a stopped thread is a no-op.
func (t *TaskThread) Cancel() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	stopped := t.stopped
	t.mu.Unlock()

	t.done.Store(true)
	cancel()
	t.queue.ReleaseTasksBlock()
	<-stopped

	t.queue.unregisterThread(t)

	t.mu.Lock()
	t.running = false
	t.cancel = nil
	t.stopped = nil
	t.mu.Unlock()
}
