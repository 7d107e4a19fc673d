package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/delta3d/delta3d-sub039/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "threadpool",
		Usage: "Run and inspect the multi-queue thread pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "threadpool.yaml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewInfoCommand(),
		},
	}
}

// loadConfig reads path, falling back to defaults when the file does not
// exist. Any other load error is returned.
func loadConfig(path string, debug bool) (*config.File, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config not found, using defaults", "path", path)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.File) (*slog.Logger, error) {
	return cfg.Log.NewSlogLogger(os.Stderr)
}
