package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	threadpool "github.com/delta3d/delta3d-sub039"
	"github.com/delta3d/delta3d-sub039/config"
	"github.com/delta3d/delta3d-sub039/core"
	obs "github.com/delta3d/delta3d-sub039/observability/prometheus"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a pool and push a synthetic workload through it",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Worker threads (negative: hardware concurrency - 1, 0: background-only)",
			},
			&cli.IntFlag{
				Name:  "tasks",
				Usage: "Number of tasks to submit",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Serve Prometheus metrics",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Listen address for /metrics",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "Keep the pool and metrics endpoint up after the workload finishes",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd.Bool("debug"))
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("threads") {
		n := int(cmd.Int("threads"))
		cfg.Pool.Threads = &n
	}
	if cmd.IsSet("tasks") {
		cfg.Workload.Tasks = int(cmd.Int("tasks"))
	}
	if cmd.IsSet("metrics") {
		cfg.Metrics.Enabled = cmd.Bool("metrics")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.String("metrics-addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger := core.NewSlogLogger(slogger)

	pc := cfg.PoolConfig(logger)
	var poller *obs.SnapshotPoller
	var server *http.Server
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
		if err != nil {
			return fmt.Errorf("metrics exporter: %w", err)
		}
		poller, err = obs.NewSnapshotPoller(reg, cfg.Metrics.PollInterval)
		if err != nil {
			return fmt.Errorf("snapshot poller: %w", err)
		}
		pc.Metrics = exporter

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	pool := threadpool.New(pc)
	pool.Init(cfg.Pool.ThreadCount())
	defer pool.Shutdown()

	if server != nil {
		poller.AddPool(pool.ID(), pool)
		poller.Start(ctx)
		defer poller.Stop()

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slogger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		slogger.Info("metrics endpoint up", "addr", cfg.Metrics.Addr)
	}

	res, err := runWorkload(ctx, pool, cfg.Workload)
	if err != nil {
		return err
	}
	printReport(cmd, pool, res)

	if linger := cmd.Duration("linger"); linger > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}
	return nil
}

type workloadResult struct {
	Submitted int
	KeepRuns  int64
	Elapsed   time.Duration
}

// runWorkload submits w.Tasks tasks from w.Producers goroutines, round-robin
// over the configured queues, and waits for all of them. The caller helps
// drain Immediate work, which is the only way it runs in background-only mode.
func runWorkload(ctx context.Context, pool *threadpool.ThreadPool, w config.WorkloadConfig) (workloadResult, error) {
	selectors, err := w.Selectors()
	if err != nil {
		return workloadResult{}, err
	}
	start := time.Now()

	var keep *threadpool.Task
	if w.KeepTicks > 0 {
		keep = threadpool.NewKeepTask("keep-ticker", func(ctx context.Context) {
			if keep.Executions()+1 >= int64(w.KeepTicks) {
				keep.SetKeep(false)
			}
		})
		pool.AddTask(keep, threadpool.IO)
	}

	tasks := make([]*threadpool.Task, w.Tasks)
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < w.Producers; p++ {
		p := p
		g.Go(func() error {
			for i := p; i < w.Tasks; i += w.Producers {
				if err := gctx.Err(); err != nil {
					return err
				}
				task := threadpool.NewTask(fmt.Sprintf("work-%d", i), func(ctx context.Context) {
					time.Sleep(w.TaskDuration)
				})
				tasks[i] = task
				pool.AddTask(task, selectors[i%len(selectors)])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return workloadResult{}, fmt.Errorf("submit workload: %w", err)
	}

	for _, task := range tasks {
		if err := waitDraining(ctx, pool, task); err != nil {
			return workloadResult{}, err
		}
	}

	res := workloadResult{Submitted: len(tasks), Elapsed: time.Since(start)}
	if keep != nil {
		if err := keep.Wait(ctx); err != nil {
			return workloadResult{}, fmt.Errorf("keep task: %w", err)
		}
		res.KeepRuns = keep.Executions()
	}
	return res, nil
}

func waitDraining(ctx context.Context, pool *threadpool.ThreadPool, task *threadpool.Task) error {
	for !task.WaitUntilComplete(10 * time.Millisecond) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("wait for %s: %w", task.Name(), err)
		}
		pool.ExecuteTasksContext(ctx)
	}
	return nil
}

func printReport(cmd *cli.Command, pool *threadpool.ThreadPool, res workloadResult) {
	w := cmd.Root().Writer
	stats := pool.Stats()

	fmt.Fprintf(w, "pool %s: %d thread(s), background only: %v\n", stats.ID, stats.Workers, stats.BackgroundOnly)
	fmt.Fprintf(w, "completed %d task(s) in %v\n", res.Submitted, res.Elapsed.Round(time.Millisecond))
	if res.KeepRuns > 0 {
		fmt.Fprintf(w, "keep task ran %d time(s)\n", res.KeepRuns)
	}
	for _, q := range stats.Queues {
		fmt.Fprintf(w, "queue %s: queued=%d in_flight=%d threads=%d\n", q.Name, q.Queued, q.InFlight, q.Threads)
	}
	for _, rec := range pool.RecentTasks(5) {
		fmt.Fprintf(w, "recent %s on %s band %d took %v\n", rec.Name, rec.QueueName, rec.QueueID, rec.Duration.Round(time.Microsecond))
	}
}
