package threadpool_test

import (
	"context"
	"fmt"

	threadpool "github.com/delta3d/delta3d-sub039"
	"github.com/delta3d/delta3d-sub039/core"
)

// Example shows background work with a completion wait.
func Example() {
	pool := threadpool.New(&threadpool.Config{Logger: core.NewNoOpLogger()})
	pool.Init(2)
	defer pool.Shutdown()

	task := threadpool.NewTask("load", func(ctx context.Context) {
		fmt.Println("loaded")
	})
	pool.AddTask(task, threadpool.Background)
	task.WaitUntilComplete(-1)

	fmt.Println("done")

	// Output:
	// loaded
	// done
}

// ExampleThreadPool_ExecuteTasks drives Immediate work from the calling
// goroutine in background-only mode.
func ExampleThreadPool_ExecuteTasks() {
	pool := threadpool.New(&threadpool.Config{Logger: core.NewNoOpLogger()})
	pool.Init(0)
	defer pool.Shutdown()

	for i := 0; i < 3; i++ {
		i := i
		pool.AddTask(threadpool.NewTask("frame", func(ctx context.Context) {
			fmt.Println("immediate", i)
		}), threadpool.Immediate)
	}
	pool.ExecuteTasks()

	// Output:
	// immediate 0
	// immediate 1
	// immediate 2
}

// ExampleNewKeepTask re-runs a task until it clears its own keep flag.
func ExampleNewKeepTask() {
	pool := threadpool.New(&threadpool.Config{Logger: core.NewNoOpLogger()})
	pool.Init(1)
	defer pool.Shutdown()

	var task *threadpool.Task
	task = threadpool.NewKeepTask("poll", func(ctx context.Context) {
		n := task.Executions() + 1
		fmt.Println("tick", n)
		if n == 3 {
			task.SetKeep(false)
		}
	})
	pool.AddTask(task, threadpool.IO)
	task.WaitUntilComplete(-1)

	// Output:
	// tick 1
	// tick 2
	// tick 3
}
