package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
)

func (fp *Persistence) watchesDir() string {
	return filepath.Join(fp.root, "watches")
}

func (fp *Persistence) watchPath(id string) string {
	return filepath.Join(fp.watchesDir(), fileName(id))
}

// Watches returns every stored watch sorted by id.
func (fp *Persistence) Watches(ctx context.Context) ([]*models.Watch, error) {
	entries, err := os.ReadDir(fp.watchesDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.Watch{}, nil
		}

		return nil, fmt.Errorf("failed to list watch files: %w", err)
	}

	watches := make([]*models.Watch, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		watch, err := fp.readWatch(filepath.Join(fp.watchesDir(), entry.Name()))
		if err != nil {
			return nil, err
		}

		watches = append(watches, watch)
	}

	sort.Slice(watches, func(i, j int) bool {
		return watches[i].ID < watches[j].ID
	})

	return watches, nil
}

func (fp *Persistence) WatchByID(_ context.Context, id string) (*models.Watch, error) {
	watch, err := fp.readWatch(fp.watchPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWatchError("WatchByID", id, persistence.ErrWatchNotFound)
		}

		return nil, persistence.NewWatchError("WatchByID", id, err)
	}

	return watch, nil
}

func (fp *Persistence) readWatch(filePath string) (*models.Watch, error) {
	body, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, err
	}

	var watch models.Watch

	err = json.Unmarshal(body, &watch)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal watch %s: %w", filePath, err)
	}

	return &watch, nil
}

func (fp *Persistence) SaveWatch(_ context.Context, watch *models.Watch) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if watch.CreatedAt.IsZero() {
		watch.CreatedAt = now
	}

	watch.UpdatedAt = now

	return fp.writeWatch(watch)
}

func (fp *Persistence) writeWatch(watch *models.Watch) error {
	err := os.MkdirAll(fp.watchesDir(), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create watches directory: %w", err)
	}

	data, err := json.MarshalIndent(watch, "", "  ")
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	err = os.WriteFile(fp.watchPath(watch.ID), data, 0o600)
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	return nil
}

func (fp *Persistence) SaveWatchStatus(ctx context.Context, watchID string, status models.WatchStatus) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	watch, err := fp.WatchByID(ctx, watchID)
	if err != nil {
		return err
	}

	watch.Status = status

	return fp.writeWatch(watch)
}

func (fp *Persistence) DeleteWatch(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.watchPath(id))
	if err != nil && !os.IsNotExist(err) {
		return persistence.NewWatchError("DeleteWatch", id, err)
	}

	return nil
}
