package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"miniisp/internal/config"
	"miniisp/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app carries the state shared by every subcommand once the persistent
// flags have been parsed.
type app struct {
	stderr io.Writer

	configPath string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "miniisp",
		Short:         "Minimal image signal processing pipeline for raw Bayer captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); defaults to $"+logger.EnvLevel)

	root.AddCommand(
		newProcessCmd(a),
		newSimulateCmd(a),
		newBatchCmd(a),
		newExtractCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	level := a.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewConsole(a.stderr, lvl)
	return nil
}
