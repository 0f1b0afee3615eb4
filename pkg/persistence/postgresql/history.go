package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/watcher/pkg/models"
)

// SaveRecord stores a record. Records are immutable, a second write of the same id is ignored.
func (p *Persistence) SaveRecord(ctx context.Context, record *models.WatchRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO watch_records (id, watch_id, node_id, state, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		record.ID, record.WatchID, record.NodeID, string(record.State), encoded, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", record.ID, err)
	}

	return nil
}

func (p *Persistence) Records(ctx context.Context, watchID string, limit int) ([]*models.WatchRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT record FROM watch_records
		WHERE watch_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		watchID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of watch %s: %w", watchID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.WatchRecord, 0)

	for rows.Next() {
		var encoded []byte

		err := rows.Scan(&encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var record models.WatchRecord

		err = json.Unmarshal(encoded, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
