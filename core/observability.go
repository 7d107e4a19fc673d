package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     string
	Name       string
	QueueName  string
	QueueID    int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Requeued   bool
	Panicked   bool
}

// QueueStats represents runtime observability state for a task queue.
type QueueStats struct {
	Name     string
	Queued   int
	InFlight int
	Threads  int
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID             string
	Workers        int
	Immediate      int
	Initialized    bool
	BackgroundOnly bool
	Queues         []QueueStats
}
