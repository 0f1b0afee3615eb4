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

	"github.com/dukex/watcher/pkg/models"
)

func (fp *Persistence) historyDir(watchID string) string {
	return filepath.Join(fp.root, "history", fileName(watchID))
}

func (fp *Persistence) SaveRecord(_ context.Context, record *models.WatchRecord) error {
	dir := fp.historyDir(record.WatchID)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.ID, err)
	}

	err = os.WriteFile(filepath.Join(dir, fileName(record.ID)), data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}

	return nil
}

func (fp *Persistence) Records(_ context.Context, watchID string, limit int) ([]*models.WatchRecord, error) {
	dir := fp.historyDir(watchID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.WatchRecord{}, nil
		}

		return nil, fmt.Errorf("failed to list history of watch %s: %w", watchID, err)
	}

	records := make([]*models.WatchRecord, 0, len(entries))

	for _, entry := range entries {
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", entry.Name(), err)
		}

		var record models.WatchRecord

		err = json.Unmarshal(body, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", entry.Name(), err)
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}
