package execution

import (
	"fmt"
	"time"

	"github.com/dukex/watcher/pkg/models"
)

// Throttler decides whether a watch or one of its actions must not run yet.
type Throttler struct {
	defaultPeriod time.Duration
}

func NewThrottler(defaultPeriod time.Duration) Throttler {
	return Throttler{defaultPeriod: defaultPeriod}
}

// Period returns the watch throttle period, falling back to the default.
func (t Throttler) Period(watch *models.Watch) time.Duration {
	if watch.ThrottlePeriod != nil {
		return watch.ThrottlePeriod.Std()
	}

	return t.defaultPeriod
}

// Watch reports whether the actions of watch ran less than a throttle period before now.
func (t Throttler) Watch(watch *models.Watch, now time.Time) (bool, string) {
	period := t.Period(watch)
	if period <= 0 || watch.Status.LastExecuted == nil {
		return false, ""
	}

	since := now.Sub(*watch.Status.LastExecuted)
	if since >= period {
		return false, ""
	}

	return true, fmt.Sprintf("throttling interval is set to [%s] but time elapsed since last execution is [%s]", period, since)
}

// Action reports whether one action is throttled: it was acked, or it last
// succeeded less than its own throttle period before now.
func (t Throttler) Action(status *models.ActionStatus, period *models.Duration, now time.Time) (bool, string) {
	if status == nil {
		return false, ""
	}

	if status.AckState == models.AckAcked {
		return true, "action has been acked"
	}

	if period == nil || period.Std() <= 0 || status.LastSuccessfulExecution == nil {
		return false, ""
	}

	since := now.Sub(*status.LastSuccessfulExecution)
	if since >= period.Std() {
		return false, ""
	}

	return true, fmt.Sprintf("throttling interval is set to [%s] but time elapsed since last successful execution is [%s]", period.Std(), since)
}
