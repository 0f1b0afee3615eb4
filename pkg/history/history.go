// Package history delivers execution records to their sinks. Writes are best
// effort: a failing sink never changes the outcome of an execution.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/models"
)

// Sink receives one record per completed execution.
type Sink interface {
	Write(ctx context.Context, record *models.WatchRecord) error
}

// RecordStore is the part of the persistence layer that keeps records.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *models.WatchRecord) error
}

// PersistenceSink stores records in the persistence layer.
type PersistenceSink struct {
	store RecordStore
}

func NewPersistenceSink(store RecordStore) *PersistenceSink {
	return &PersistenceSink{store: store}
}

func (s *PersistenceSink) Write(ctx context.Context, record *models.WatchRecord) error {
	err := s.store.SaveRecord(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", record.ID, err)
	}

	return nil
}

// EventBusSink publishes each record as a watch.executed event keyed by watch id.
type EventBusSink struct {
	publisher eventbus.EventPublisher
}

func NewEventBusSink(publisher eventbus.EventPublisher) *EventBusSink {
	return &EventBusSink{publisher: publisher}
}

func (s *EventBusSink) Write(ctx context.Context, record *models.WatchRecord) error {
	err := s.publisher.Publish(ctx, record.WatchID, events.NewWatchExecuted(*record))
	if err != nil {
		return fmt.Errorf("failed to publish record %s: %w", record.ID, err)
	}

	return nil
}

// MultiSink writes to every sink. Every sink is attempted; the failures are joined.
type MultiSink struct {
	logger *slog.Logger
	sinks  []Sink
}

func NewMultiSink(logger *slog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{logger: logger.With("module", "history"), sinks: sinks}
}

func (s *MultiSink) Write(ctx context.Context, record *models.WatchRecord) error {
	var errs []error

	for _, sink := range s.sinks {
		err := sink.Write(ctx, record)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to write history record",
				"wid", record.ID, "watch_id", record.WatchID, "error", err)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Write(context.Context, *models.WatchRecord) error {
	return nil
}
