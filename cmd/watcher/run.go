package main

import (
	"context"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/watcher/pkg/log"
)

func NewRunCommand() *cli.Command {
	flags := append([]cli.Flag{logLevelFlag()}, serverFlags()...)
	flags = append(flags, engineFlags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the execution engine and its HTTP API",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := configFromCommand(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)

			logger := log.WithModule("watcher")

			logger.InfoContext(ctx, "Initializing watcher")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			n, err := newNode(ctx, logger, cfg, command.Bool("telemetry"))
			if err != nil {
				return err
			}

			return n.run(ctx)
		},
	}
}
