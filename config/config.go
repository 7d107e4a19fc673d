package config

import "time"

// File is the on-disk configuration for the threadpool CLI.
type File struct {
	Pool     PoolConfig     `yaml:"pool"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
	Workload WorkloadConfig `yaml:"workload"`
}

// PoolConfig configures the thread pool.
type PoolConfig struct {
	Name string `yaml:"name"`
	// Threads is passed to Init. Negative means hardware concurrency - 1,
	// zero means background-only. Unset defaults to -1.
	Threads         *int          `yaml:"threads"`
	ParkTimeout     time.Duration `yaml:"park_timeout"`
	HistoryCapacity int           `yaml:"history_capacity"`
	PinThreads      bool          `yaml:"pin_threads"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Namespace    string        `yaml:"namespace"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// WorkloadConfig describes the synthetic load submitted by "threadpool run".
type WorkloadConfig struct {
	Tasks        int           `yaml:"tasks"`
	Producers    int           `yaml:"producers"`
	TaskDuration time.Duration `yaml:"task_duration"`
	Queues       []string      `yaml:"queues"`
	KeepTicks    int           `yaml:"keep_ticks"`
}

// ThreadCount returns the Init argument.
func (p PoolConfig) ThreadCount() int {
	if p.Threads == nil {
		return -1
	}
	return *p.Threads
}
