package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	threadpool "github.com/delta3d/delta3d-sub039"
	"github.com/delta3d/delta3d-sub039/core"
)

var envRe = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads a YAML config file, expands ${VAR} references from the
// environment, unmarshals it into File, applies defaults and validates it.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*File, error) {
	expanded := expandEnv(string(data))

	var cfg File
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns a File with every default applied.
func Default() *File {
	var cfg File
	applyDefaults(&cfg)
	return &cfg
}

// expandEnv replaces ${VAR} with the env var value. Unset variables expand
// to the empty string.
func expandEnv(s string) string {
	return envRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *File) {
	if cfg.Pool.Name == "" {
		cfg.Pool.Name = "threadpool"
	}
	if cfg.Pool.Threads == nil {
		n := -1
		cfg.Pool.Threads = &n
	}
	if cfg.Pool.ParkTimeout <= 0 {
		cfg.Pool.ParkTimeout = core.DefaultParkTimeout
	}
	if cfg.Pool.HistoryCapacity <= 0 {
		cfg.Pool.HistoryCapacity = 100
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":2112"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "threadpool"
	}
	if cfg.Metrics.PollInterval <= 0 {
		cfg.Metrics.PollInterval = time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Workload.Tasks <= 0 {
		cfg.Workload.Tasks = 100
	}
	if cfg.Workload.Producers <= 0 {
		cfg.Workload.Producers = 4
	}
	if cfg.Workload.TaskDuration <= 0 {
		cfg.Workload.TaskDuration = 2 * time.Millisecond
	}
	if len(cfg.Workload.Queues) == 0 {
		cfg.Workload.Queues = []string{"immediate", "background", "io"}
	}
}

// Validate checks values that have no sensible default.
func (f *File) Validate() error {
	if _, err := ParseLevel(f.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(f.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", f.Log.Format)
	}
	if _, err := f.Workload.Selectors(); err != nil {
		return err
	}
	if f.Workload.Tasks <= 0 || f.Workload.Producers <= 0 {
		return fmt.Errorf("workload needs positive tasks and producers, got %d and %d", f.Workload.Tasks, f.Workload.Producers)
	}
	if f.Workload.KeepTicks < 0 {
		return fmt.Errorf("workload.keep_ticks must not be negative, got %d", f.Workload.KeepTicks)
	}
	return nil
}

// Selectors parses the configured queue names.
func (w WorkloadConfig) Selectors() ([]threadpool.QueueSelector, error) {
	out := make([]threadpool.QueueSelector, 0, len(w.Queues))
	for _, name := range w.Queues {
		sel, err := threadpool.ParseQueueSelector(name)
		if err != nil {
			return nil, fmt.Errorf("workload.queues: %w", err)
		}
		out = append(out, sel)
	}
	return out, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewSlogLogger builds a *slog.Logger writing to w.
func (l LogConfig) NewSlogLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

// PoolConfig converts the pool section into a threadpool.Config. Handlers
// not set here (PanicHandler, Metrics) take the pool defaults unless the
// caller fills them in.
func (f *File) PoolConfig(logger core.Logger) *threadpool.Config {
	return &threadpool.Config{
		Name:            f.Pool.Name,
		Logger:          logger,
		ParkTimeout:     f.Pool.ParkTimeout,
		HistoryCapacity: f.Pool.HistoryCapacity,
		PinThreads:      f.Pool.PinThreads,
	}
}
