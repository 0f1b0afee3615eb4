package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/log"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/watch"
)

// executeOptions are the knobs of a one-shot execution.
type executeOptions struct {
	mode             models.ActionMode
	ignoreCondition  bool
	alternativeInput map[string]any
	triggerData      map[string]any
}

func NewExecuteCommand() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Aliases:   []string{"x"},
		Usage:     "Run a watch file once and print its record; actions are simulated unless --mode says otherwise",
		ArgsUsage: "<watch.json>",
		Flags: []cli.Flag{
			logLevelFlag(),
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Mode of every action (execute, force_execute, simulate, force_simulate, skip)",
				Value: string(models.ActionModeSimulate),
			},
			&cli.BoolFlag{
				Name:  "ignore-condition",
				Usage: "Run the actions even when the condition is not met",
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "JSON object used as payload instead of running the watch input",
			},
			&cli.StringFlag{
				Name:  "trigger-data",
				Usage: "JSON object exposed as ctx.trigger.data",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			if command.NArg() != 1 {
				return cli.Exit("exactly one watch file is required", 2)
			}

			opts := executeOptions{
				mode:            models.ActionMode(command.String("mode")),
				ignoreCondition: command.Bool("ignore-condition"),
			}

			err := decodeObject(command.String("input"), &opts.alternativeInput)
			if err != nil {
				return fmt.Errorf("invalid --input: %w", err)
			}

			err = decodeObject(command.String("trigger-data"), &opts.triggerData)
			if err != nil {
				return fmt.Errorf("invalid --trigger-data: %w", err)
			}

			return executeFile(ctx, log.WithModule("execute"), command.Root().Writer, command.Args().First(), opts)
		},
	}
}

func decodeObject(raw string, target *map[string]any) error {
	if raw == "" {
		return nil
	}

	return json.Unmarshal([]byte(raw), target)
}

func executeFile(ctx context.Context, logger *slog.Logger, out io.Writer, path string, opts executeOptions) error {
	conditions, components, parser, err := offlineComponents(logger)
	if err != nil {
		return err
	}

	w, err := parseWatchFile(parser, path)
	if err != nil {
		return err
	}

	// Inline executions never read or write the store.
	store := watch.NewStore(logger, nil)

	engine := config.DefaultEngine()
	engine.PoolSize = 1

	service := execution.NewService(logger, engine, store, conditions, components, nil)
	service.Start()

	defer func() {
		_ = service.Stop(context.WithoutCancel(ctx))
	}()

	record, err := service.Execute(ctx, execution.ExecuteRequest{
		Watch:            w,
		TriggerData:      opts.triggerData,
		IgnoreCondition:  opts.ignoreCondition,
		AlternativeInput: opts.alternativeInput,
		ActionModes:      map[string]models.ActionMode{execution.AllActions: opts.mode},
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(record)
}
