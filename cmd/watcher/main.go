// Package main provides the watcher command: the watch execution engine, its
// HTTP API and offline tools to validate and dry-run watch documents.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/watcher/pkg/log"
)

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "watcher",
		Usage:                 "Run and manage watches",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
			NewExecuteCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("watcher").Error("Command failed", "error", err)
		os.Exit(1)
	}
}
