package watch_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/mocks"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/persistence/file"
	"github.com/dukex/watcher/pkg/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*watch.Store, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return watch.NewStore(slog.New(slog.DiscardHandler), p), p
}

func TestStore_GetReturnsCopies(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, &models.Watch{ID: "w1", Metadata: map[string]any{"team": "ops"}})
	require.NoError(t, err)

	first, err := store.Get(ctx, "w1")
	require.NoError(t, err)

	first.Metadata["team"] = "dev"

	second, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "ops", second.Metadata["team"])

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrWatchNotFound)
}

func TestStore_PutKeepsStatus(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, &models.Watch{ID: "w1"})
	require.NoError(t, err)

	status, err := store.UpdateStatus(ctx, "w1", func(status *models.WatchStatus) {
		status.LastState = models.ExecutionStateExecuted
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Version)

	updated, err := store.Put(ctx, &models.Watch{ID: "w1", Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, models.ExecutionStateExecuted, updated.Status.LastState)
	assert.Equal(t, int64(1), updated.Status.Version)

	_, err = store.UpdateStatus(ctx, "missing", func(*models.WatchStatus) {})
	require.ErrorIs(t, err, persistence.ErrWatchNotFound)
}

func TestStore_LoadAndDelete(t *testing.T) {
	ctx := context.Background()
	store, p := newStore(t)

	for _, id := range []string{"b", "a"} {
		require.NoError(t, p.SaveWatch(ctx, &models.Watch{ID: id, Condition: json.RawMessage(`{"always":{}}`)}))
	}

	require.NoError(t, store.Load(ctx))
	assert.Equal(t, 2, store.Len())

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	existed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = p.WatchByID(ctx, "a")
	require.ErrorIs(t, err, persistence.ErrWatchNotFound)
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	store, p := newStore(t)

	require.NoError(t, p.SaveWatch(ctx, &models.Watch{ID: "w1", Name: "from another node"}))

	refreshed, err := store.Refresh(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "from another node", refreshed.Name)

	require.NoError(t, p.DeleteWatch(ctx, "w1"))

	_, err = store.Refresh(ctx, "w1")
	require.ErrorIs(t, err, persistence.ErrWatchNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestStore_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	bus := &mocks.MockEventBus{}

	store := watch.NewStore(slog.New(slog.DiscardHandler), file.NewPersistence(t.TempDir())).
		WithPublisher(bus, "node-1")

	bus.On("Publish", mock.Anything, "w1", mock.MatchedBy(func(event events.WatchUpdated) bool {
		return event.WatchID == "w1" && event.NodeID == "node-1"
	})).Return(nil).Once()
	bus.On("Publish", mock.Anything, "w1", mock.MatchedBy(func(event events.WatchDeleted) bool {
		return event.WatchID == "w1"
	})).Return(nil).Once()

	_, err := store.Put(ctx, &models.Watch{ID: "w1"})
	require.NoError(t, err)

	_, err = store.Delete(ctx, "w1")
	require.NoError(t, err)

	bus.AssertExpectations(t)
}
