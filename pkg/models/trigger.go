package models

import "time"

// Trigger describes when a watch fires on its own. A watch without a schedule
// only runs when triggered manually or through the event bus.
type Trigger struct {
	Schedule *ScheduleTrigger `json:"schedule,omitempty"`
}

// ScheduleTrigger fires on a cron expression or on a fixed interval. Exactly one must be set.
type ScheduleTrigger struct {
	Cron     string    `json:"cron,omitempty"     validate:"required_without=Interval"`
	Interval *Duration `json:"interval,omitempty" validate:"required_without=Cron"`
}

func (t Trigger) clone() Trigger {
	if t.Schedule == nil {
		return t
	}

	schedule := *t.Schedule
	if t.Schedule.Interval != nil {
		interval := *t.Schedule.Interval
		schedule.Interval = &interval
	}

	return Trigger{Schedule: &schedule}
}

// TriggerType identifies what produced a trigger event.
type TriggerType string

const (
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeEvent    TriggerType = "event"
)

// TriggerEvent is one firing of one watch.
type TriggerEvent struct {
	WatchID       string         `json:"watch_id"       validate:"required"`
	Type          TriggerType    `json:"type"`
	TriggeredTime time.Time      `json:"triggered_time"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Data          map[string]any `json:"data,omitempty"`
}
