package models

import "time"

// AckState is the acknowledgement state of one action.
type AckState string

const (
	// AckAwaitsSuccessfulExecution: the action has not run successfully since the condition was last not met.
	AckAwaitsSuccessfulExecution AckState = "awaits_successful_execution"
	// AckAckable: the action ran successfully and may be acknowledged.
	AckAckable AckState = "ackable"
	// AckAcked: the action is muted until the watch condition is not met again.
	AckAcked AckState = "acked"
)

// WatchStatus is the mutable part of a watch, updated after recorded executions.
type WatchStatus struct {
	LastChecked      *time.Time               `json:"last_checked,omitempty"`
	LastMetCondition *time.Time               `json:"last_met_condition,omitempty"`
	LastExecuted     *time.Time               `json:"last_executed,omitempty"`
	LastState        ExecutionState           `json:"last_state,omitempty"`
	Actions          map[string]*ActionStatus `json:"actions,omitempty"`
	Version          int64                    `json:"version"`
}

// ActionStatus tracks acknowledgement and throttling of a single action.
type ActionStatus struct {
	AckState                AckState         `json:"ack_state"`
	AckTimestamp            time.Time        `json:"ack_timestamp"`
	LastExecution           *ActionExecution `json:"last_execution,omitempty"`
	LastSuccessfulExecution *time.Time       `json:"last_successful_execution,omitempty"`
	LastThrottle            *ActionThrottle  `json:"last_throttle,omitempty"`
}

type ActionExecution struct {
	Timestamp  time.Time `json:"timestamp"`
	Successful bool      `json:"successful"`
	Reason     string    `json:"reason,omitempty"`
}

type ActionThrottle struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// NewActionStatus returns the initial status of an action.
func NewActionStatus(now time.Time) *ActionStatus {
	return &ActionStatus{
		AckState:     AckAwaitsSuccessfulExecution,
		AckTimestamp: now,
	}
}

// Clone returns a deep copy of the status.
func (s WatchStatus) Clone() WatchStatus {
	clone := s
	clone.LastChecked = cloneTime(s.LastChecked)
	clone.LastMetCondition = cloneTime(s.LastMetCondition)
	clone.LastExecuted = cloneTime(s.LastExecuted)

	if s.Actions != nil {
		clone.Actions = make(map[string]*ActionStatus, len(s.Actions))
		for id, status := range s.Actions {
			clone.Actions[id] = status.Clone()
		}
	}

	return clone
}

// ActionStatus returns the status of actionID, creating it on first use.
func (s *WatchStatus) ActionStatus(actionID string, now time.Time) *ActionStatus {
	if s.Actions == nil {
		s.Actions = make(map[string]*ActionStatus)
	}

	status, ok := s.Actions[actionID]
	if !ok {
		status = NewActionStatus(now)
		s.Actions[actionID] = status
	}

	return status
}

// OnCheck records a condition evaluation. A condition that is not met resets
// every acknowledged or ackable action.
func (s *WatchStatus) OnCheck(met bool, now time.Time) {
	checked := now
	s.LastChecked = &checked

	if met {
		metAt := now
		s.LastMetCondition = &metAt

		return
	}

	for _, status := range s.Actions {
		status.resetAck(now)
	}
}

// OnExecuted marks the watch actions as having run at now.
func (s *WatchStatus) OnExecuted(now time.Time) {
	executed := now
	s.LastExecuted = &executed
}

// OnActionResult records the outcome of one action execution.
func (s *WatchStatus) OnActionResult(actionID string, successful bool, reason string, now time.Time) {
	status := s.ActionStatus(actionID, now)
	status.LastExecution = &ActionExecution{Timestamp: now, Successful: successful, Reason: reason}

	if !successful {
		return
	}

	success := now
	status.LastSuccessfulExecution = &success

	if status.AckState == AckAwaitsSuccessfulExecution {
		status.AckState = AckAckable
		status.AckTimestamp = now
	}
}

// OnActionThrottled records that an action was throttled.
func (s *WatchStatus) OnActionThrottled(actionID, reason string, now time.Time) {
	status := s.ActionStatus(actionID, now)
	status.LastThrottle = &ActionThrottle{Timestamp: now, Reason: reason}
}

// Ack acknowledges the given actions (all actions when none are given) and
// reports whether any state changed. Only ackable actions become acked.
func (s *WatchStatus) Ack(now time.Time, actionIDs ...string) bool {
	changed := false

	if len(actionIDs) == 0 {
		for _, status := range s.Actions {
			changed = status.ack(now) || changed
		}

		return changed
	}

	for _, id := range actionIDs {
		status, ok := s.Actions[id]
		if !ok {
			continue
		}

		changed = status.ack(now) || changed
	}

	return changed
}

func (a *ActionStatus) Clone() *ActionStatus {
	if a == nil {
		return nil
	}

	clone := *a
	clone.LastSuccessfulExecution = cloneTime(a.LastSuccessfulExecution)

	if a.LastExecution != nil {
		execution := *a.LastExecution
		clone.LastExecution = &execution
	}

	if a.LastThrottle != nil {
		throttle := *a.LastThrottle
		clone.LastThrottle = &throttle
	}

	return &clone
}

func (a *ActionStatus) ack(now time.Time) bool {
	if a.AckState != AckAckable {
		return false
	}

	a.AckState = AckAcked
	a.AckTimestamp = now

	return true
}

func (a *ActionStatus) resetAck(now time.Time) {
	if a.AckState == AckAwaitsSuccessfulExecution {
		return
	}

	a.AckState = AckAwaitsSuccessfulExecution
	a.AckTimestamp = now
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}
