package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/watcher/pkg/models"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func durationPtr(d time.Duration) *models.Duration {
	period := models.Duration(d)

	return &period
}

func TestThrottler_Watch(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		watch     *models.Watch
		throttled bool
	}{
		{
			name:      "never executed",
			watch:     &models.Watch{},
			throttled: false,
		},
		{
			name:      "executed within default period",
			watch:     &models.Watch{Status: models.WatchStatus{LastExecuted: timePtr(now.Add(-2 * time.Second))}},
			throttled: true,
		},
		{
			name:      "executed before default period",
			watch:     &models.Watch{Status: models.WatchStatus{LastExecuted: timePtr(now.Add(-time.Minute))}},
			throttled: false,
		},
		{
			name: "zero watch period disables throttling",
			watch: &models.Watch{
				ThrottlePeriod: durationPtr(0),
				Status:         models.WatchStatus{LastExecuted: timePtr(now.Add(-time.Second))},
			},
			throttled: false,
		},
		{
			name: "watch period longer than default",
			watch: &models.Watch{
				ThrottlePeriod: durationPtr(10 * time.Second),
				Status:         models.WatchStatus{LastExecuted: timePtr(now.Add(-7 * time.Second))},
			},
			throttled: true,
		},
	}

	throttler := NewThrottler(5 * time.Second)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			throttled, reason := throttler.Watch(tt.watch, now)

			assert.Equal(t, tt.throttled, throttled)

			if tt.throttled {
				assert.Contains(t, reason, "throttling interval")
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestThrottler_Action(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    *models.ActionStatus
		period    *models.Duration
		throttled bool
		reason    string
	}{
		{
			name:      "no status yet",
			status:    nil,
			period:    durationPtr(time.Minute),
			throttled: false,
		},
		{
			name:      "acked",
			status:    &models.ActionStatus{AckState: models.AckAcked},
			throttled: true,
			reason:    "acked",
		},
		{
			name: "succeeded within period",
			status: &models.ActionStatus{
				AckState:                models.AckAckable,
				LastSuccessfulExecution: timePtr(now.Add(-10 * time.Second)),
			},
			period:    durationPtr(time.Minute),
			throttled: true,
			reason:    "throttling interval",
		},
		{
			name: "succeeded before period",
			status: &models.ActionStatus{
				AckState:                models.AckAckable,
				LastSuccessfulExecution: timePtr(now.Add(-2 * time.Minute)),
			},
			period:    durationPtr(time.Minute),
			throttled: false,
		},
		{
			name: "no action period",
			status: &models.ActionStatus{
				AckState:                models.AckAckable,
				LastSuccessfulExecution: timePtr(now.Add(-time.Second)),
			},
			throttled: false,
		},
	}

	throttler := NewThrottler(5 * time.Second)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			throttled, reason := throttler.Action(tt.status, tt.period, now)

			assert.Equal(t, tt.throttled, throttled)
			assert.Contains(t, reason, tt.reason)
		})
	}
}
