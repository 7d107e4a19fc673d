package core

import (
	"sync"

	"github.com/eapache/queue"
)

const defaultTaskHistoryCapacity = 100

// TaskHistory keeps the most recent execution records, oldest evicted first.
type TaskHistory struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int
}

// NewTaskHistory creates a history holding at most capacity records.
func NewTaskHistory(capacity int) *TaskHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &TaskHistory{items: queue.New(), capacity: capacity}
}

// Add appends a record, evicting the oldest one when full.
func (h *TaskHistory) Add(record TaskExecutionRecord) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.items.Length() >= h.capacity {
		h.items.Remove()
	}
	h.items.Add(record)
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *TaskHistory) Recent(limit int) []TaskExecutionRecord {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.items.Length()
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, h.items.Get(-i).(TaskExecutionRecord))
	}
	return out
}

// Last returns the newest record.
func (h *TaskHistory) Last() (TaskExecutionRecord, bool) {
	if h == nil {
		return TaskExecutionRecord{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.items.Length() == 0 {
		return TaskExecutionRecord{}, false
	}
	return h.items.Get(-1).(TaskExecutionRecord), true
}

// Len returns the number of stored records.
func (h *TaskHistory) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.items.Length()
}
