package threadpool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/delta3d/delta3d-sub039/core"
)

// QueueSelector names one of the pool's work channels.
type QueueSelector int

const (
	// Immediate work runs on the shared worker threads and on any thread
	// calling ExecuteTasks.
	Immediate QueueSelector = iota
	// Background work runs on worker threads only.
	Background
	// IO work runs on a single dedicated thread.
	IO
)

const (
	immediateQueueID = 0
	defaultQueueID   = 1
)

func (s QueueSelector) String() string {
	switch s {
	case Immediate:
		return "immediate"
	case Background:
		return "background"
	case IO:
		return "io"
	default:
		return fmt.Sprintf("QueueSelector(%d)", int(s))
	}
}

// ParseQueueSelector accepts the names returned by QueueSelector.String,
// case-insensitively.
func ParseQueueSelector(s string) (QueueSelector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return Immediate, nil
	case "background":
		return Background, nil
	case "io":
		return IO, nil
	default:
		return 0, fmt.Errorf("unknown queue selector %q", s)
	}
}

// Config holds configuration options for ThreadPool.
// All fields are optional; zero values are replaced with defaults.
type Config struct {
	// Name prefixes queue names in logs and metrics. Defaults to "threadpool".
	Name string

	// Logger defaults to the slog-backed core logger.
	Logger core.Logger

	// PanicHandler is called when a task panics. Defaults to core.DefaultPanicHandler.
	PanicHandler core.PanicHandler

	// Metrics defaults to core.NilMetrics.
	Metrics core.Metrics

	// ParkTimeout bounds how long idle workers sleep before re-checking their queue.
	ParkTimeout time.Duration

	// HistoryCapacity is the number of execution records kept for RecentTasks.
	HistoryCapacity int

	// CPUCount reports the hardware concurrency used when Init is given a
	// negative thread count. Defaults to core.HardwareConcurrency.
	CPUCount func() int

	// PinThreads binds each worker to one logical CPU, round-robin.
	PinThreads bool
}

// DefaultConfig returns a config with default handlers.
func DefaultConfig() *Config {
	logger := core.NewDefaultLogger()
	return &Config{
		Name:            "threadpool",
		Logger:          logger,
		PanicHandler:    &core.DefaultPanicHandler{Logger: logger},
		Metrics:         &core.NilMetrics{},
		ParkTimeout:     core.DefaultParkTimeout,
		HistoryCapacity: 100,
		CPUCount:        core.HardwareConcurrency,
	}
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	def := DefaultConfig()
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &core.DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.ParkTimeout <= 0 {
		out.ParkTimeout = def.ParkTimeout
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = def.HistoryCapacity
	}
	if out.CPUCount == nil {
		out.CPUCount = def.CPUCount
	}
	return out
}

// ThreadPool owns the Immediate, Background and IO queues and the worker
// threads that drain them. Construct one at the application's composition
// root and pass it to the subsystems that submit work.
//
// Init and Shutdown are not meant to race with AddTask or ExecuteTasks from
// other goroutines; AddTask before Init panics.
type ThreadPool struct {
	cfg     Config
	history *core.TaskHistory

	mu             sync.RWMutex
	initialized    bool
	backgroundOnly bool
	immediate      *core.TaskQueue
	background     *core.TaskQueue
	io             *core.TaskQueue
	threads        []*core.TaskThread
}

// New creates an uninitialized pool. cfg may be nil.
func New(cfg *Config) *ThreadPool {
	c := cfg.withDefaults()
	return &ThreadPool{
		cfg:     c,
		history: core.NewTaskHistory(c.HistoryCapacity),
	}
}

// ID returns the configured pool name.
func (p *ThreadPool) ID() string { return p.cfg.Name }

// Init creates the queues and starts the worker threads. A negative
// numThreads means one fewer than the hardware concurrency. With zero
// workers left, one background-only worker is started on a separate
// Background queue and Immediate work only runs through ExecuteTasks;
// otherwise Background shares the Immediate queue and its numThreads workers.
// One extra thread always serves the IO queue.
//
// Calling Init on an initialized pool is a no-op.
func (p *ThreadPool) Init(numThreads int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return
	}

	if numThreads < 0 {
		numThreads = p.cfg.CPUCount() - 1
	}

	p.immediate = p.newQueue("immediate")
	p.backgroundOnly = numThreads <= 0
	if p.backgroundOnly {
		numThreads = 1
		p.background = p.newQueue("background")
	} else {
		p.background = p.immediate
	}

	p.threads = make([]*core.TaskThread, 0, numThreads+1)
	for i := 0; i < numThreads; i++ {
		p.startThread(p.background, fmt.Sprintf("%s-worker-%d", p.cfg.Name, i))
	}

	p.io = p.newQueue("io")
	p.startThread(p.io, p.cfg.Name+"-io")

	p.initialized = true
	p.cfg.Logger.Info("thread pool initialized",
		core.F("pool", p.cfg.Name),
		core.F("workers", numThreads),
		core.F("threads", len(p.threads)),
		core.F("background_only", p.backgroundOnly),
	)
}

func (p *ThreadPool) newQueue(kind string) *core.TaskQueue {
	return core.NewTaskQueue(p.cfg.Name+"."+kind, &core.QueueConfig{
		Logger:       p.cfg.Logger,
		PanicHandler: p.cfg.PanicHandler,
		Metrics:      p.cfg.Metrics,
		History:      p.history,
		ParkTimeout:  p.cfg.ParkTimeout,
	})
}

func (p *ThreadPool) startThread(queue *core.TaskQueue, name string) {
	opts := core.ThreadOptions{Name: name}
	if p.cfg.PinThreads {
		if n := p.cfg.CPUCount(); n > 0 {
			opts.Pin = true
			opts.CPU = len(p.threads) % n
		}
	}
	t := core.NewTaskThread(queue, opts)
	t.Start()
	p.threads = append(p.threads, t)
}

// IsInitialized reports whether Init has run since the last Shutdown.
func (p *ThreadPool) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// IsBackgroundOnly reports whether the workers only serve the Background
// queue, leaving Immediate work to ExecuteTasks.
func (p *ThreadPool) IsBackgroundOnly() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backgroundOnly
}

// NumImmediateWorkerThreads returns 1 in background-only mode and the total
// thread count otherwise. Informational only.
func (p *ThreadPool) NumImmediateWorkerThreads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.backgroundOnly {
		return 1
	}
	return len(p.threads)
}

// NumThreads returns the number of running threads, IO thread included.
func (p *ThreadPool) NumThreads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.threads)
}

// Queue returns the queue behind selector. It panics before Init.
func (p *ThreadPool) Queue(selector QueueSelector) *core.TaskQueue {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		panic(fmt.Sprintf("threadpool %q: not initialized, call Init first", p.cfg.Name))
	}
	switch selector {
	case Immediate:
		return p.immediate
	case Background:
		return p.background
	case IO:
		return p.io
	default:
		panic(fmt.Sprintf("threadpool %q: unknown queue selector %d", p.cfg.Name, int(selector)))
	}
}

// AddTask queues task on the selected channel. Immediate work goes to band
// 0, Background and IO work to band 1.
func (p *ThreadPool) AddTask(task *core.Task, selector QueueSelector) {
	queueID := defaultQueueID
	if selector == Immediate {
		queueID = immediateQueueID
	}
	p.AddTaskWithQueueID(task, selector, queueID)
}

// AddTaskWithQueueID queues task on the selected channel in an explicit
// priority band (clamped to core.MinQueueID..core.MaxQueueID).
func (p *ThreadPool) AddTaskWithQueueID(task *core.Task, selector QueueSelector, queueID int) {
	q := p.Queue(selector)
	task.ResetWaitBlock()
	q.Add(task, queueID)
}

// ExecuteTasks runs Immediate work on the calling goroutine until the
// Immediate queue has no band-0 task queued or executing anywhere.
// Call it periodically from the thread that owns Immediate work; in
// background-only mode it is the only way that work runs.
func (p *ThreadPool) ExecuteTasks() {
	p.ExecuteTasksContext(context.Background())
}

// ExecuteTasksContext is ExecuteTasks bounded by ctx.
func (p *ThreadPool) ExecuteTasksContext(ctx context.Context) {
	p.Queue(Immediate).ExecuteTasks(ctx, true, immediateQueueID)
}

// Shutdown cancels and joins every thread, then drops the queues. Tasks
// still waiting are discarded and their waiters released. The pool may be
// initialized again afterwards.
func (p *ThreadPool) Shutdown() {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return
	}
	threads := p.threads
	queues := []*core.TaskQueue{p.immediate, p.io}
	if p.background != p.immediate {
		queues = append(queues, p.background)
	}
	p.threads = nil
	p.immediate, p.background, p.io = nil, nil, nil
	p.initialized = false
	p.backgroundOnly = false
	p.mu.Unlock()

	for _, t := range threads {
		t.Cancel()
	}
	dropped := 0
	for _, q := range queues {
		dropped += q.RemoveAllTasks()
	}

	p.cfg.Logger.Info("thread pool shut down",
		core.F("pool", p.cfg.Name),
		core.F("threads", len(threads)),
		core.F("dropped", dropped),
	)
}

// RecentTasks returns up to limit execution records, newest first.
func (p *ThreadPool) RecentTasks(limit int) []core.TaskExecutionRecord {
	return p.history.Recent(limit)
}

// Stats returns a snapshot of the pool state.
func (p *ThreadPool) Stats() core.PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := core.PoolStats{
		ID:             p.cfg.Name,
		Workers:        len(p.threads),
		Initialized:    p.initialized,
		BackgroundOnly: p.backgroundOnly,
	}
	if !p.initialized {
		return stats
	}
	stats.Immediate = len(p.threads)
	if p.backgroundOnly {
		stats.Immediate = 1
	}
	stats.Queues = append(stats.Queues, p.immediate.Stats())
	if p.background != p.immediate {
		stats.Queues = append(stats.Queues, p.background.Stats())
	}
	stats.Queues = append(stats.Queues, p.io.Stats())
	return stats
}
