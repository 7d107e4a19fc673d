package core

import (
	"container/heap"
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MinQueueID is the highest priority band.
	MinQueueID = 0
	// MaxQueueID is the lowest priority band.
	MaxQueueID = 15
	// NumQueueIDs is the number of priority bands in a TaskQueue.
	NumQueueIDs = MaxQueueID + 1

	// AnyQueueID lets ExecuteSingleTask claim work from every band.
	AnyQueueID = math.MaxInt

	defaultQueueCap = 16
)

// ClampQueueID forces id into [MinQueueID, MaxQueueID].
func ClampQueueID(id int) int {
	if id < MinQueueID {
		return MinQueueID
	}
	if id > MaxQueueID {
		return MaxQueueID
	}
	return id
}

// =============================================================================
// entryHeap: Min-heap of queue entries, lowest queue id first
// =============================================================================

type queueEntry struct {
	task     *Task
	queueID  int
	sequence uint64 // tie-breaker inside a band
	index    int    // for heap
}

// entryHeap implements heap.Interface
type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].queueID != h[j].queueID {
		return h[i].queueID < h[j].queueID
	}
	return h[i].sequence < h[j].sequence
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	n := len(*h)
	item := x.(*queueEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// =============================================================================
// TaskQueue: Priority queue of tasks shared by a set of TaskThreads
// =============================================================================

// TaskQueue is a thread-safe priority queue of tasks bucketed into
// NumQueueIDs bands. Lower bands are always claimed first. Idle consumers park
// on a level-triggered gate that Add opens.
//
// Each band has an in-flight counter covering tasks that are queued or
// executing. ExecuteTasks uses it to wait for work other threads have already
// claimed.
type TaskQueue struct {
	name string

	mu           sync.Mutex
	pq           entryHeap
	nextSequence uint64

	inFlight [NumQueueIDs]atomic.Int32
	gate     *Gate

	threadsMu sync.Mutex
	threads   []*TaskThread

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
	history      *TaskHistory
	parkTimeout  time.Duration
}

// NewTaskQueue creates an empty queue. cfg may be nil.
func NewTaskQueue(name string, cfg *QueueConfig) *TaskQueue {
	c := cfg.withDefaults()
	return &TaskQueue{
		name:         name,
		pq:           make(entryHeap, 0, defaultQueueCap),
		gate:         NewGate(false),
		logger:       c.Logger,
		panicHandler: c.PanicHandler,
		metrics:      c.Metrics,
		history:      c.History,
		parkTimeout:  c.ParkTimeout,
	}
}

// Name returns the queue name.
func (q *TaskQueue) Name() string { return q.name }

// Logger returns the logger the queue and its threads write to.
func (q *TaskQueue) Logger() Logger { return q.logger }

// Add queues task in band queueID (clamped) and wakes parked consumers.
func (q *TaskQueue) Add(task *Task, queueID int) {
	queueID = ClampQueueID(queueID)

	q.mu.Lock()
	heap.Push(&q.pq, &queueEntry{
		task:     task,
		queueID:  queueID,
		sequence: q.nextSequence,
	})
	q.nextSequence++
	q.inFlight[queueID].Add(1)
	depth := len(q.pq)
	q.gate.Open()
	q.mu.Unlock()

	q.metrics.RecordQueueDepth(q.name, depth)
}

// Empty reports whether no task is waiting. The answer is advisory: other
// threads may add or claim work right after it is computed.
func (q *TaskQueue) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of waiting tasks. Advisory, like Empty.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

// InFlight returns the number of tasks in band queueID that are queued or
// executing.
func (q *TaskQueue) InFlight(queueID int) int {
	return int(q.inFlight[ClampQueueID(queueID)].Load())
}

// InFlightUpTo sums the in-flight counters of bands 0..maxQueueID. The
// counters are read one by one, so the total may be torn under concurrent
// updates.
func (q *TaskQueue) InFlightUpTo(maxQueueID int) int {
	if maxQueueID < MinQueueID {
		return 0
	}
	if maxQueueID > MaxQueueID {
		maxQueueID = MaxQueueID
	}
	total := 0
	for i := MinQueueID; i <= maxQueueID; i++ {
		total += int(q.inFlight[i].Load())
	}
	return total
}

// RemoveAllTasks drops every waiting task and closes the gate so idle
// consumers park again. Tasks already claimed are untouched. Dropped tasks
// have their completion gate released and their in-flight count returned.
func (q *TaskQueue) RemoveAllTasks() int {
	q.mu.Lock()
	removed := q.pq
	q.pq = make(entryHeap, 0, defaultQueueCap)
	q.gate.Close()
	for _, e := range removed {
		q.inFlight[e.queueID].Add(-1)
	}
	q.mu.Unlock()

	for _, e := range removed {
		e.task.ReleaseWaitBlock()
	}
	if len(removed) > 0 {
		q.logger.Debug("removed queued tasks", F("queue", q.name), F("count", len(removed)))
		q.metrics.RecordTasksRemoved(q.name, len(removed))
	}
	q.metrics.RecordQueueDepth(q.name, 0)
	return len(removed)
}

// RemoveTask drops every waiting entry of task. Returns false if none was
// queued.
func (q *TaskQueue) RemoveTask(task *Task) bool {
	q.mu.Lock()
	kept := q.pq[:0]
	count := 0
	for _, e := range q.pq {
		if e.task == task {
			q.inFlight[e.queueID].Add(-1)
			count++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.pq); i++ {
		q.pq[i] = nil
	}
	q.pq = kept
	heap.Init(&q.pq)
	if len(q.pq) == 0 {
		q.gate.Close()
	}
	depth := len(q.pq)
	q.mu.Unlock()

	if count == 0 {
		return false
	}
	task.ReleaseWaitBlock()
	q.metrics.RecordTasksRemoved(q.name, count)
	q.metrics.RecordQueueDepth(q.name, depth)
	return true
}

// ReleaseTasksBlock opens the gate so parked consumers wake up even without
// work.
func (q *TaskQueue) ReleaseTasksBlock() {
	q.gate.Open()
}

// claim pops the head entry if its band is at most maxQueueID.
// empty is true when there was nothing to pop; capped is true when the head
// belongs to a band above maxQueueID.
func (q *TaskQueue) claim(maxQueueID int, closeIfEmpty bool) (entry *queueEntry, empty, capped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		if closeIfEmpty {
			q.gate.Close()
		}
		return nil, true, false
	}
	if q.pq[0].queueID > maxQueueID {
		return nil, false, true
	}

	entry = heap.Pop(&q.pq).(*queueEntry)
	if len(q.pq) == 0 {
		q.gate.Close()
	}
	return entry, false, false
}

// ExecuteSingleTask claims and runs the highest priority task whose band is
// at most maxQueueID. When the queue is empty and blockIfEmpty is set, it
// parks on the gate for up to the park timeout (or until ctx is done) and
// retries once. Returns true if a task was run.
func (q *TaskQueue) ExecuteSingleTask(ctx context.Context, blockIfEmpty bool, maxQueueID int) bool {
	entry, empty, capped := q.claim(maxQueueID, false)
	if capped {
		return false
	}
	if empty {
		if !blockIfEmpty {
			return false
		}
		q.gate.WaitContext(ctx, q.parkTimeout)

		entry, empty, capped = q.claim(maxQueueID, true)
		if empty || capped {
			return false
		}
	}

	q.execute(ctx, entry)
	return true
}

func (q *TaskQueue) execute(ctx context.Context, entry *queueEntry) {
	task := entry.task
	startedAt := time.Now()

	panicked := q.invoke(ctx, task)

	requeued := false
	if !panicked && task.Keep() {
		// Re-add before the decrement so the band never reads as idle.
		q.Add(task, entry.queueID)
		requeued = true
		q.metrics.RecordTaskRequeued(q.name, entry.queueID)
	} else {
		task.ReleaseWaitBlock()
	}
	q.inFlight[entry.queueID].Add(-1)

	finishedAt := time.Now()
	q.metrics.RecordTaskDuration(q.name, entry.queueID, finishedAt.Sub(startedAt))
	q.history.Add(TaskExecutionRecord{
		TaskID:     task.ID(),
		Name:       task.Name(),
		QueueName:  q.name,
		QueueID:    entry.queueID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Requeued:   requeued,
		Panicked:   panicked,
	})
}

func (q *TaskQueue) invoke(ctx context.Context, task *Task) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			q.metrics.RecordTaskPanic(q.name, r)
			q.panicHandler.HandlePanic(ctx, q.name, task, r, debug.Stack())
		}
	}()
	task.Run(ctx)
	return false
}

// ExecuteTasks runs tasks from bands 0..maxQueueID on the calling goroutine
// until none is left. With waitForAllComplete it also keeps yielding until
// the in-flight count of those bands reaches zero, which covers tasks other
// threads claimed but have not finished. A keep task in the drained bands
// makes this loop run until the task clears its keep flag or ctx is done.
func (q *TaskQueue) ExecuteTasks(ctx context.Context, waitForAllComplete bool, maxQueueID int) {
	for ctx.Err() == nil {
		if q.ExecuteSingleTask(ctx, false, maxQueueID) {
			continue
		}
		if !waitForAllComplete || q.InFlightUpTo(maxQueueID) == 0 {
			return
		}
		runtime.Gosched()
	}
}

func (q *TaskQueue) registerThread(t *TaskThread) {
	q.threadsMu.Lock()
	defer q.threadsMu.Unlock()
	q.threads = append(q.threads, t)
}

func (q *TaskQueue) unregisterThread(t *TaskThread) {
	q.threadsMu.Lock()
	defer q.threadsMu.Unlock()
	for i, th := range q.threads {
		if th == t {
			q.threads = append(q.threads[:i], q.threads[i+1:]...)
			return
		}
	}
}

// Threads returns the threads currently bound to this queue.
func (q *TaskQueue) Threads() []*TaskThread {
	q.threadsMu.Lock()
	defer q.threadsMu.Unlock()
	out := make([]*TaskThread, len(q.threads))
	copy(out, q.threads)
	return out
}

// Stats returns a snapshot of the queue state.
func (q *TaskQueue) Stats() QueueStats {
	return QueueStats{
		Name:     q.name,
		Queued:   q.Len(),
		InFlight: q.InFlightUpTo(MaxQueueID),
		Threads:  len(q.Threads()),
	}
}
