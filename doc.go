// Package threadpool provides a multi-queue, priority-ordered thread pool for
// background asset loading and periodic work.
//
// Work is submitted as *Task values to one of three named channels:
//
//   - Immediate: serviced by the shared workers and by any goroutine that
//     calls ExecuteTasks (typically the main loop, once per frame).
//   - Background: serviced by the shared workers only.
//   - IO: serviced by one dedicated thread, for blocking reads and writes.
//
// Underneath, each channel is a core.TaskQueue with sixteen priority bands.
// Lower bands are always claimed first; AddTaskWithQueueID exposes them.
//
// # Quick Start
//
//	pool := threadpool.New(threadpool.DefaultConfig())
//	pool.Init(-1) // hardware concurrency - 1 workers, plus one IO thread
//	defer pool.Shutdown()
//
//	task := threadpool.NewTask("load-model", func(ctx context.Context) {
//		// load something
//	})
//	pool.AddTask(task, threadpool.Background)
//	task.WaitUntilComplete(-1)
//
// # Keep tasks
//
// A task created with NewKeepTask (or SetKeep(true)) is put back on its queue
// after every execution. Clear the flag from inside the body, or shut the
// pool down, to stop it.
//
// # Single-core mode
//
// Init(0) starts a single background-only worker. Immediate work then runs
// only when the owning goroutine calls ExecuteTasks.
package threadpool
