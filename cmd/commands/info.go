package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	threadpool "github.com/delta3d/delta3d-sub039"
	"github.com/delta3d/delta3d-sub039/core"
)

// NewInfoCommand returns the info subcommand.
func NewInfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show detected hardware concurrency and the resulting worker layout",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Init argument to resolve (negative: hardware concurrency - 1)",
				Value: -1,
			},
		},
		Action: runInfo,
	}
}

func runInfo(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd.Bool("debug"))
	if err != nil {
		return err
	}
	threads := cfg.Pool.ThreadCount()
	if cmd.IsSet("threads") {
		threads = int(cmd.Int("threads"))
	}

	pc := cfg.PoolConfig(core.NewNoOpLogger())
	pool := threadpool.New(pc)
	pool.Init(threads)
	stats := pool.Stats()
	immediate := pool.NumImmediateWorkerThreads()
	pool.Shutdown()

	w := cmd.Root().Writer
	fmt.Fprintf(w, "hardware concurrency: %d\n", core.HardwareConcurrency())
	fmt.Fprintf(w, "init argument: %d\n", threads)
	fmt.Fprintf(w, "threads: %d\n", stats.Workers)
	fmt.Fprintf(w, "immediate workers: %d\n", immediate)
	fmt.Fprintf(w, "background only: %v\n", stats.BackgroundOnly)
	for _, q := range stats.Queues {
		fmt.Fprintf(w, "queue %s: %d thread(s)\n", q.Name, q.Threads)
	}
	return nil
}
