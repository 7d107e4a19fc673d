package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task body panics inside a worker.
// The panic is recovered, the task is treated as finished, and the worker
// keeps running.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context the task was running with
	// - queueName: The name of the queue the task was claimed from
	// - task: The task that panicked
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, task *Task, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, queueName string, task *Task, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("queue", queueName),
		F("task", task.Name()),
		F("task_id", task.ID()),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long one execution of a task took.
	RecordTaskDuration(queueName string, queueID int, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the number of tasks waiting in a queue.
	RecordQueueDepth(queueName string, depth int)

	// RecordTaskRequeued records that a keep task was put back on its queue.
	RecordTaskRequeued(queueName string, queueID int)

	// RecordTasksRemoved records tasks dropped from a queue before running.
	RecordTasksRemoved(queueName string, count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(queueName string, queueID int, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any)                          {}
func (m *NilMetrics) RecordQueueDepth(queueName string, depth int)                             {}
func (m *NilMetrics) RecordTaskRequeued(queueName string, queueID int)                         {}
func (m *NilMetrics) RecordTasksRemoved(queueName string, count int)                           {}

// =============================================================================
// QueueConfig: Configuration for TaskQueue
// =============================================================================

// DefaultParkTimeout bounds how long an idle worker sleeps on an empty queue
// before it re-checks for work.
const DefaultParkTimeout = 1000 * time.Millisecond

// QueueConfig holds configuration options for TaskQueue.
// All fields are optional; zero values are replaced with defaults.
type QueueConfig struct {
	// Logger receives queue and thread lifecycle messages. Defaults to the slog logger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// History receives one record per finished execution. Nil disables recording.
	History *TaskHistory

	// ParkTimeout is how long an idle worker waits for work. Defaults to DefaultParkTimeout.
	ParkTimeout time.Duration
}

// DefaultQueueConfig returns a config with default handlers.
func DefaultQueueConfig() *QueueConfig {
	logger := NewDefaultLogger()
	return &QueueConfig{
		Logger:       logger,
		PanicHandler: &DefaultPanicHandler{Logger: logger},
		Metrics:      &NilMetrics{},
		ParkTimeout:  DefaultParkTimeout,
	}
}

func (c *QueueConfig) withDefaults() QueueConfig {
	var out QueueConfig
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.ParkTimeout <= 0 {
		out.ParkTimeout = DefaultParkTimeout
	}
	return out
}
