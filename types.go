package threadpool

import "github.com/delta3d/delta3d-sub039/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadpool package for most use cases.

// Task is the unit of work submitted to the pool
type Task = core.Task

// TaskFunc is the body of a Task
type TaskFunc = core.TaskFunc

// TaskQueue is the priority queue behind each named channel
type TaskQueue = core.TaskQueue

// PoolStats is the snapshot returned by ThreadPool.Stats
type PoolStats = core.PoolStats

// Convenience constructors
var (
	NewTask     = core.NewTask
	NewKeepTask = core.NewKeepTask
)
