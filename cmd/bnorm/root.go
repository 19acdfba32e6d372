package main

import (
	"errors"
	"log/slog"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/spf13/cobra"
)

var errVerificationFailed = errors.New("verification failed")

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbose    bool
	workers    int
	sequential bool
	blockedMin int

	logger *slog.Logger
}

// engineConfig builds the engine scheduling configuration from the flags.
func (g *globalOptions) engineConfig() batchnorm.Config {
	cfg := batchnorm.DefaultConfig()
	if g.workers > 0 {
		cfg.Parallel.NumWorkers = g.workers
		cfg.Parallel.Enabled = g.workers > 1
	}
	if g.sequential {
		cfg.Parallel = parallel.Sequential()
	}
	if g.blockedMin >= 0 {
		cfg.BlockedMinGroup = g.blockedMin
	}
	return cfg
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "bnorm",
		Short:         "Batch normalization engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if g.verbose {
				level = slog.LevelDebug
			}
			g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	pf.IntVar(&g.workers, "workers", 0, "worker goroutines (0: one per CPU)")
	pf.BoolVar(&g.sequential, "sequential", false, "run everything on one goroutine")
	pf.IntVar(&g.blockedMin, "blocked-min", -1, "group size from which groups are reduced in blocks (0 disables, -1 default)")

	root.AddCommand(
		newVersionCmd(),
		newInfoCmd(g),
		newRunCmd(g),
		newTrainCmd(g),
		newInferCmd(g),
		newInspectCmd(g),
	)
	return root
}
