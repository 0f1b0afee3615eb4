package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/watcher/pkg/cmd"
	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/registry"
	"github.com/dukex/watcher/pkg/watch"
)

// offlinePublisher lets offline commands build publish actions without an
// event bus. Nothing is published in simulate mode.
type offlinePublisher struct{}

func (offlinePublisher) Publish(context.Context, string, eventbus.Event) error {
	return nil
}

func offlineComponents(logger *slog.Logger) (*condition.Registry, *registry.Registry, *watch.Parser, error) {
	conditions := condition.NewDefaultRegistry()
	components := cmd.NewRegistry(logger, offlinePublisher{})

	parser, err := watch.NewParser(conditions, components)
	if err != nil {
		return nil, nil, nil, err
	}

	return conditions, components, parser, nil
}

// watchIDFromPath names a watch after its file: alerts/high_cpu.json is high_cpu.
func watchIDFromPath(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseWatchFile(parser *watch.Parser, path string) (*models.Watch, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch file: %w", err)
	}

	return parser.Parse(watchIDFromPath(path), document)
}
