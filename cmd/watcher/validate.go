package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/watcher/pkg/log"
)

var ErrInvalidWatches = errors.New("invalid watches found")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate watch documents",
		ArgsUsage: "<watch.json>...",
		Flags:     []cli.Flag{logLevelFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			if command.NArg() == 0 {
				return cli.Exit("at least one watch file is required", 2)
			}

			return validateFiles(command.Root().Writer, command.Args().Slice())
		},
	}
}

func validateFiles(out io.Writer, paths []string) error {
	_, _, parser, err := offlineComponents(log.WithModule("validate"))
	if err != nil {
		return err
	}

	invalid := 0

	for _, path := range paths {
		w, err := parseWatchFile(parser, path)
		if err != nil {
			invalid++

			_, _ = fmt.Fprintf(out, "INVALID %s: %v\n", path, err)

			continue
		}

		_, _ = fmt.Fprintf(out, "VALID   %s (%s, %d actions)\n", path, w.ID, len(w.Actions))
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidWatches, invalid, len(paths))
	}

	return nil
}
