package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/persistence/file"
	"github.com/dukex/watcher/pkg/persistence/postgresql"
	"github.com/dukex/watcher/pkg/persistence/redis"
)

// NewPersistence picks the persistence backend from the URL scheme:
// file://path, postgres://..., postgresql://... or redis://.... A URL without
// a scheme is a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return file.NewPersistence(databaseURL), nil
	}

	switch provider {
	case "file":
		return file.NewPersistence(rest), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", provider)
	}
}
