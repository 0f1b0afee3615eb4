package bus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/watcher/pkg/channels/gochannel"
	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/trigger/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type channelListener chan models.TriggerEvent

func (l channelListener) Triggered(_ context.Context, events []models.TriggerEvent) {
	for _, event := range events {
		l <- event
	}
}

func TestEngine_FiresFromBus(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	eventBus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = eventBus.Close() }()

	now := time.Date(2024, 2, 2, 2, 0, 0, 0, time.UTC)
	engine, err := bus.NewEngine(slog.New(slog.DiscardHandler), clock.NewMock(now), eventBus)
	require.NoError(t, err)

	_, err = engine.Add(&models.Watch{ID: "w1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := make(channelListener, 4)
	require.NoError(t, engine.Start(ctx, listener))
	require.NoError(t, eventBus.Subscribe(ctx))

	require.NoError(t, bus.Fire(ctx, eventBus, "unknown", nil))
	require.NoError(t, bus.Fire(ctx, eventBus, "w1", map[string]any{"source": "ci"}))

	select {
	case event := <-listener:
		assert.Equal(t, "w1", event.WatchID, "events for unknown watches are dropped")
		assert.Equal(t, models.TriggerTypeEvent, event.Type)
		assert.Equal(t, now, event.TriggeredTime)
		assert.False(t, event.ScheduledTime.IsZero())
		assert.Equal(t, "ci", event.Data["source"])
	case <-time.After(5 * time.Second):
		t.Fatal("trigger was not delivered")
	}

	assert.True(t, engine.Remove("w1"))
	assert.False(t, engine.Remove("w1"))
}
