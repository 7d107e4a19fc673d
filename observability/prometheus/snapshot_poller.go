package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/delta3d/delta3d-sub039/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolWorkers     *prom.GaugeVec
	poolInitialized *prom.GaugeVec
	queueQueued     *prom.GaugeVec
	queueInFlight   *prom.GaugeVec
	queueThreads    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      "pool_threads",
		Help:      "Running threads per pool, IO thread included.",
	}, []string{"pool"})
	poolInitialized := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      "pool_initialized",
		Help:      "Pool initialized state (1=initialized, 0=shut down).",
	}, []string{"pool"})
	queueQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      "queue_queued",
		Help:      "Tasks waiting per queue.",
	}, []string{"pool", "queue"})
	queueInFlight := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      "queue_in_flight",
		Help:      "Tasks queued or executing per queue.",
	}, []string{"pool", "queue"})
	queueThreads := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      "queue_threads",
		Help:      "Threads bound per queue.",
	}, []string{"pool", "queue"})

	var err error
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolInitialized, err = registerCollector(reg, poolInitialized); err != nil {
		return nil, err
	}
	if queueQueued, err = registerCollector(reg, queueQueued); err != nil {
		return nil, err
	}
	if queueInFlight, err = registerCollector(reg, queueInFlight); err != nil {
		return nil, err
	}
	if queueThreads, err = registerCollector(reg, queueThreads); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		pools:           make(map[string]PoolSnapshotProvider),
		poolWorkers:     poolWorkers,
		poolInitialized: poolInitialized,
		queueQueued:     queueQueued,
		queueInFlight:   queueInFlight,
		queueThreads:    queueThreads,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Initialized {
			p.poolInitialized.WithLabelValues(name).Set(1)
		} else {
			p.poolInitialized.WithLabelValues(name).Set(0)
		}
		for _, q := range stats.Queues {
			queue := normalizeLabel(q.Name, "unknown")
			p.queueQueued.WithLabelValues(name, queue).Set(float64(q.Queued))
			p.queueInFlight.WithLabelValues(name, queue).Set(float64(q.InFlight))
			p.queueThreads.WithLabelValues(name, queue).Set(float64(q.Threads))
		}
	}
}
