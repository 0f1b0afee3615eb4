package watch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
)

// Store caches watches in memory on top of the persistence layer. Reads hand
// out deep copies so an execution never observes a concurrent edit.
type Store struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	nodeID      string

	mu      sync.RWMutex
	watches map[string]*models.Watch
}

func NewStore(logger *slog.Logger, p persistence.Persistence) *Store {
	return &Store{
		logger:      logger.With("module", "watch_store"),
		persistence: p,
		watches:     make(map[string]*models.Watch),
	}
}

// WithPublisher announces every stored or deleted watch on the event bus.
func (s *Store) WithPublisher(publisher eventbus.EventPublisher, nodeID string) *Store {
	s.publisher = publisher
	s.nodeID = nodeID

	return s
}

// Load replaces the cache with every watch in the persistence layer.
func (s *Store) Load(ctx context.Context) error {
	watches, err := s.persistence.Watches(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watches: %w", err)
	}

	loaded := make(map[string]*models.Watch, len(watches))
	for _, watch := range watches {
		loaded[watch.ID] = watch
	}

	s.mu.Lock()
	s.watches = loaded
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Loaded watches", "count", len(loaded))

	return nil
}

// Refresh reloads one watch from the persistence layer, dropping it from the
// cache when it no longer exists.
func (s *Store) Refresh(ctx context.Context, id string) (*models.Watch, error) {
	watch, err := s.persistence.WatchByID(ctx, id)
	if persistence.IsWatchNotFound(err) {
		s.mu.Lock()
		delete(s.watches, id)
		s.mu.Unlock()

		return nil, err
	}

	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.watches[id] = watch
	s.mu.Unlock()

	return watch.Clone(), nil
}

// Get returns a copy of the watch or persistence.ErrWatchNotFound.
func (s *Store) Get(_ context.Context, id string) (*models.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watch, ok := s.watches[id]
	if !ok {
		return nil, persistence.NewWatchError("Get", id, persistence.ErrWatchNotFound)
	}

	return watch.Clone(), nil
}

// All returns copies of every watch sorted by id.
func (s *Store) All() []*models.Watch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watches := make([]*models.Watch, 0, len(s.watches))
	for _, watch := range s.watches {
		watches = append(watches, watch.Clone())
	}

	slices.SortFunc(watches, func(a, b *models.Watch) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return watches
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.watches)
}

// Put stores a watch definition. The status of an existing watch is kept; it
// belongs to the execution engine.
func (s *Store) Put(ctx context.Context, watch *models.Watch) (*models.Watch, error) {
	s.mu.Lock()

	stored := watch.Clone()
	if existing, ok := s.watches[watch.ID]; ok {
		stored.Status = existing.Status.Clone()
		stored.CreatedAt = existing.CreatedAt
	}

	err := s.persistence.SaveWatch(ctx, stored)
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("failed to save watch %s: %w", watch.ID, err)
	}

	s.watches[watch.ID] = stored
	result := stored.Clone()
	s.mu.Unlock()

	s.publish(ctx, watch.ID, events.NewWatchUpdated(watch.ID))

	return result, nil
}

// Delete removes a watch and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()

	_, existed := s.watches[id]

	err := s.persistence.DeleteWatch(ctx, id)
	if err != nil {
		s.mu.Unlock()

		return false, fmt.Errorf("failed to delete watch %s: %w", id, err)
	}

	delete(s.watches, id)
	s.mu.Unlock()

	if existed {
		s.publish(ctx, id, events.NewWatchDeleted(id))
	}

	return existed, nil
}

// UpdateStatus applies update to the current status under the store lock,
// bumps its version and persists it.
func (s *Store) UpdateStatus(ctx context.Context, id string, update func(status *models.WatchStatus)) (models.WatchStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watch, ok := s.watches[id]
	if !ok {
		return models.WatchStatus{}, persistence.NewWatchError("UpdateStatus", id, persistence.ErrWatchNotFound)
	}

	status := watch.Status.Clone()
	update(&status)
	status.Version = watch.Status.Version + 1

	err := s.persistence.SaveWatchStatus(ctx, id, status)
	if err != nil {
		return models.WatchStatus{}, fmt.Errorf("failed to save status of watch %s: %w", id, err)
	}

	watch.Status = status

	return status.Clone(), nil
}

func (s *Store) publish(ctx context.Context, watchID string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	switch e := event.(type) {
	case events.WatchUpdated:
		e.NodeID = s.nodeID
		event = e
	case events.WatchDeleted:
		e.NodeID = s.nodeID
		event = e
	}

	err := s.publisher.Publish(ctx, watchID, event)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish watch change", "type", event.GetType(), "error", err)
	}
}
