package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
)

// Watches returns every stored watch sorted by id.
func (p *Persistence) Watches(ctx context.Context) ([]*models.Watch, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT definition FROM watches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watches: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	watches := make([]*models.Watch, 0)

	for rows.Next() {
		var definition []byte

		err := rows.Scan(&definition)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch: %w", err)
		}

		watch, err := decodeWatch(definition)
		if err != nil {
			return nil, err
		}

		watches = append(watches, watch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watches: %w", err)
	}

	return watches, nil
}

func (p *Persistence) WatchByID(ctx context.Context, id string) (*models.Watch, error) {
	var definition []byte

	err := p.db.QueryRowContext(ctx, `SELECT definition FROM watches WHERE id = $1`, id).Scan(&definition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWatchError("WatchByID", id, persistence.ErrWatchNotFound)
		}

		return nil, persistence.NewWatchError("WatchByID", id, err)
	}

	return decodeWatch(definition)
}

func (p *Persistence) SaveWatch(ctx context.Context, watch *models.Watch) error {
	now := time.Now().UTC()
	if watch.CreatedAt.IsZero() {
		watch.CreatedAt = now
	}

	watch.UpdatedAt = now

	definition, err := json.Marshal(watch)
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO watches (id, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at`,
		watch.ID, definition, watch.CreatedAt, watch.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	p.logger.DebugContext(ctx, "Saved watch", "watch_id", watch.ID)

	return nil
}

func (p *Persistence) SaveWatchStatus(ctx context.Context, watchID string, status models.WatchStatus) error {
	encoded, err := json.Marshal(status)
	if err != nil {
		return persistence.NewWatchError("SaveWatchStatus", watchID, err)
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE watches SET definition = jsonb_set(definition, '{status}', $2::jsonb)
		WHERE id = $1`,
		watchID, encoded,
	)
	if err != nil {
		return persistence.NewWatchError("SaveWatchStatus", watchID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWatchError("SaveWatchStatus", watchID, err)
	}

	if affected == 0 {
		return persistence.NewWatchError("SaveWatchStatus", watchID, persistence.ErrWatchNotFound)
	}

	return nil
}

func (p *Persistence) DeleteWatch(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM watches WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWatchError("DeleteWatch", id, err)
	}

	return nil
}

func decodeWatch(definition []byte) (*models.Watch, error) {
	var watch models.Watch

	err := json.Unmarshal(definition, &watch)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal watch: %w", err)
	}

	return &watch, nil
}
