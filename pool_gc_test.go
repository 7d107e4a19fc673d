package threadpool_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	threadpool "github.com/delta3d/delta3d-sub039"
	"github.com/delta3d/delta3d-sub039/core"
)

func newGCPool() *threadpool.ThreadPool {
	return threadpool.New(&threadpool.Config{
		Name:        "gc",
		Logger:      core.NewNoOpLogger(),
		ParkTimeout: 20 * time.Millisecond,
		CPUCount:    func() int { return 2 },
	})
}

// collectUntil runs the collector until flag is set or attempts run out.
func collectUntil(flag *atomic.Bool, attempts int) bool {
	for i := 0; i < attempts; i++ {
		runtime.GC()
		if flag.Load() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return flag.Load()
}

// TestThreadPool_GC_AfterShutdown tests that a shut down pool can be collected
// Given: a pool that has executed tasks on every queue
// When: it is shut down and references are dropped
// Then: the pool and its tasks are garbage collected
func TestThreadPool_GC_AfterShutdown(t *testing.T) {
	// Arrange
	var poolFinalized atomic.Bool
	var taskFinalized atomic.Bool

	func() {
		pool := newGCPool()
		pool.Init(1)
		runtime.SetFinalizer(pool, func(*threadpool.ThreadPool) { poolFinalized.Store(true) })

		// Act
		var executed atomic.Int32
		for _, sel := range []threadpool.QueueSelector{threadpool.Immediate, threadpool.Background, threadpool.IO} {
			task := threadpool.NewTask(sel.String(), func(ctx context.Context) { executed.Add(1) })
			runtime.SetFinalizer(task, func(*threadpool.Task) { taskFinalized.Store(true) })
			pool.AddTask(task, sel)
			task.WaitUntilComplete(-1)
		}
		if executed.Load() != 3 {
			t.Errorf("executed: got = %d, want = 3", executed.Load())
		}
		pool.Shutdown()
	}()

	// Assert
	if !collectUntil(&poolFinalized, 20) {
		t.Error("ThreadPool GC'd: got = false, want = true")
	}
	if !collectUntil(&taskFinalized, 20) {
		t.Error("Task GC'd: got = false, want = true")
	}
}

// TestThreadPool_GC_QueuedTaskDropped tests that Shutdown releases queued tasks
// Given: a background-only pool with an Immediate task nobody drains
// When: the pool is shut down
// Then: the queued task is released to its waiters and can be collected
func TestThreadPool_GC_QueuedTaskDropped(t *testing.T) {
	// Arrange
	var taskFinalized atomic.Bool
	var ran atomic.Bool

	pool := newGCPool()
	pool.Init(0)

	func() {
		task := threadpool.NewKeepTask("stranded", func(ctx context.Context) { ran.Store(true) })
		runtime.SetFinalizer(task, func(*threadpool.Task) { taskFinalized.Store(true) })
		pool.AddTask(task, threadpool.Immediate)

		// Act
		pool.Shutdown()

		if !task.WaitUntilComplete(time.Second) {
			t.Error("waiter released: got = false, want = true")
		}
	}()

	// Assert
	if ran.Load() {
		t.Error("stranded task executed: got = true, want = false")
	}
	if !collectUntil(&taskFinalized, 20) {
		t.Error("Task GC'd: got = false, want = true (possible leak in queue heap)")
	}
}

// TestThreadPool_GC_LivePoolRetained tests that an initialized pool is not collected
// Given: an initialized pool still referenced by the test
// When: collection is forced
// Then: the pool is not finalized until it is shut down and dropped
func TestThreadPool_GC_LivePoolRetained(t *testing.T) {
	var poolFinalized atomic.Bool

	pool := newGCPool()
	pool.Init(1)
	runtime.SetFinalizer(pool, func(*threadpool.ThreadPool) { poolFinalized.Store(true) })

	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	if poolFinalized.Load() {
		t.Error("live ThreadPool GC'd: got = true, want = false (still in use)")
	}
	runtime.KeepAlive(pool)

	pool.Shutdown()
	pool = nil
	if !collectUntil(&poolFinalized, 20) {
		t.Error("ThreadPool after shutdown GC'd: got = false, want = true")
	}
}
