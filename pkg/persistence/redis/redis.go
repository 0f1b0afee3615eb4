// Package redis provides Redis persistence for watches and their history.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "watcher:"
	watchesKey       = keyPrefix + "watches"
	defaultMaxRecord = 1000
	maxStatusRetries = 5
)

// Persistence stores each watch as a JSON string, the set of watch ids in a set
// and the history of each watch in a capped list, newest first.
type Persistence struct {
	client     *redis.Client
	logger     *slog.Logger
	maxRecords int64
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects to the Redis server at redisURL (redis://host:port/db).
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewWithClient(logger, client), nil
}

// NewWithClient wraps an existing client. Close closes the client.
func NewWithClient(logger *slog.Logger, client *redis.Client) *Persistence {
	return &Persistence{
		client:     client,
		logger:     logger,
		maxRecords: defaultMaxRecord,
	}
}

func watchKey(id string) string {
	return keyPrefix + "watch:" + id
}

func historyKey(watchID string) string {
	return keyPrefix + "history:" + watchID
}

func recordKey(id string) string {
	return keyPrefix + "record:" + id
}

func (p *Persistence) Watches(ctx context.Context) ([]*models.Watch, error) {
	ids, err := p.client.SMembers(ctx, watchesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list watch ids: %w", err)
	}

	watches := make([]*models.Watch, 0, len(ids))
	if len(ids) == 0 {
		return watches, nil
	}

	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = watchKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watches: %w", err)
	}

	for i, value := range values {
		encoded, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Watch listed without a definition", "watch_id", ids[i])

			continue
		}

		watch, err := decodeWatch(encoded)
		if err != nil {
			return nil, err
		}

		watches = append(watches, watch)
	}

	return watches, nil
}

func (p *Persistence) WatchByID(ctx context.Context, id string) (*models.Watch, error) {
	encoded, err := p.client.Get(ctx, watchKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewWatchError("WatchByID", id, persistence.ErrWatchNotFound)
	}

	if err != nil {
		return nil, persistence.NewWatchError("WatchByID", id, err)
	}

	return decodeWatch(encoded)
}

func (p *Persistence) SaveWatch(ctx context.Context, watch *models.Watch) error {
	now := time.Now().UTC()
	if watch.CreatedAt.IsZero() {
		watch.CreatedAt = now
	}

	watch.UpdatedAt = now

	encoded, err := json.Marshal(watch)
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, watchKey(watch.ID), encoded, 0)
		pipe.SAdd(ctx, watchesKey, watch.ID)

		return nil
	})
	if err != nil {
		return persistence.NewWatchError("SaveWatch", watch.ID, err)
	}

	return nil
}

// SaveWatchStatus replaces the status inside an optimistic transaction on the watch key.
func (p *Persistence) SaveWatchStatus(ctx context.Context, watchID string, status models.WatchStatus) error {
	key := watchKey(watchID)

	update := func(tx *redis.Tx) error {
		encoded, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return persistence.ErrWatchNotFound
		}

		if err != nil {
			return err
		}

		watch, err := decodeWatch(encoded)
		if err != nil {
			return err
		}

		watch.Status = status

		updated, err := json.Marshal(watch)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)

			return nil
		})

		return err
	}

	for range maxStatusRetries {
		err := p.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return persistence.NewWatchError("SaveWatchStatus", watchID, err)
		}

		return nil
	}

	return persistence.NewWatchError("SaveWatchStatus", watchID, redis.TxFailedErr)
}

func (p *Persistence) DeleteWatch(ctx context.Context, id string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, watchKey(id))
		pipe.SRem(ctx, watchesKey, id)

		return nil
	})
	if err != nil {
		return persistence.NewWatchError("DeleteWatch", id, err)
	}

	return nil
}

// SaveRecord stores a record once and pushes its id onto the watch history list.
func (p *Persistence) SaveRecord(ctx context.Context, record *models.WatchRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.ID, err)
	}

	created, err := p.client.SetNX(ctx, recordKey(record.ID), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", record.ID, err)
	}

	if !created {
		return nil
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, historyKey(record.WatchID), record.ID)
		pipe.LTrim(ctx, historyKey(record.WatchID), 0, p.maxRecords-1)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append record %s to history: %w", record.ID, err)
	}

	return nil
}

func (p *Persistence) Records(ctx context.Context, watchID string, limit int) ([]*models.WatchRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := p.client.LRange(ctx, historyKey(watchID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history of watch %s: %w", watchID, err)
	}

	records := make([]*models.WatchRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records of watch %s: %w", watchID, err)
	}

	for _, value := range values {
		encoded, ok := value.(string)
		if !ok {
			continue
		}

		var record models.WatchRecord

		err := json.Unmarshal([]byte(encoded), &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}

		records = append(records, &record)
	}

	slices.SortStableFunc(records, func(a, b *models.WatchRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return records, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func decodeWatch(encoded string) (*models.Watch, error) {
	var watch models.Watch

	err := json.Unmarshal([]byte(encoded), &watch)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal watch: %w", err)
	}

	return &watch, nil
}
