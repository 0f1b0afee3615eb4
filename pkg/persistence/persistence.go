// Package persistence stores watch definitions, watch status and execution history.
package persistence

import (
	"context"

	"github.com/dukex/watcher/pkg/models"
)

type Persistence interface {
	Watches(ctx context.Context) ([]*models.Watch, error)
	SaveWatch(ctx context.Context, watch *models.Watch) error
	// WatchByID returns ErrWatchNotFound when no watch has the id.
	WatchByID(ctx context.Context, id string) (*models.Watch, error)
	DeleteWatch(ctx context.Context, id string) error
	// SaveWatchStatus replaces the status of an existing watch.
	SaveWatchStatus(ctx context.Context, watchID string, status models.WatchStatus) error

	SaveRecord(ctx context.Context, record *models.WatchRecord) error
	// Records returns up to limit records of a watch, newest first.
	Records(ctx context.Context, watchID string, limit int) ([]*models.WatchRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
