package models

import "time"

// ExecutionState is the terminal outcome of one watch firing. Every firing
// reaches exactly one of these values.
type ExecutionState string

const (
	ExecutionStateExecutionNotNeeded      ExecutionState = "execution_not_needed"
	ExecutionStateThrottled               ExecutionState = "throttled"
	ExecutionStateExecuted                ExecutionState = "executed"
	ExecutionStateFailed                  ExecutionState = "failed"
	ExecutionStateNotExecutedWatchMissing ExecutionState = "not_executed_watch_missing"
	ExecutionStateExecutedMultipleTimes   ExecutionState = "executed_multiple_times"
)

// ExecutionStates lists every terminal state.
var ExecutionStates = []ExecutionState{
	ExecutionStateExecutionNotNeeded,
	ExecutionStateThrottled,
	ExecutionStateExecuted,
	ExecutionStateFailed,
	ExecutionStateNotExecutedWatchMissing,
	ExecutionStateExecutedMultipleTimes,
}

func (s ExecutionState) Valid() bool {
	for _, state := range ExecutionStates {
		if s == state {
			return true
		}
	}

	return false
}

// ExecutionPhase is the step an in-flight execution is currently in.
type ExecutionPhase string

const (
	PhaseAwaitsExecution ExecutionPhase = "awaits_execution"
	PhaseStarted         ExecutionPhase = "started"
	PhaseInput           ExecutionPhase = "input"
	PhaseCondition       ExecutionPhase = "condition"
	PhaseWatchTransform  ExecutionPhase = "watch_transform"
	PhaseActions         ExecutionPhase = "actions"
	PhaseFinished        ExecutionPhase = "finished"
)

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StepSuccess         StepStatus = "success"
	StepFailure         StepStatus = "failure"
	StepSimulated       StepStatus = "simulated"
	StepThrottled       StepStatus = "throttled"
	StepSkipped         StepStatus = "skipped"
	StepConditionFailed StepStatus = "condition_failed"
)

// InputResult is the resolved input of an execution.
type InputResult struct {
	Type    string         `json:"type"`
	Status  StepStatus     `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// ConditionResult is the evaluation of a condition.
type ConditionResult struct {
	Type   string         `json:"type"`
	Status StepStatus     `json:"status"`
	Met    bool           `json:"met"`
	Detail map[string]any `json:"detail,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// TransformResult is the payload produced by a transform.
type TransformResult struct {
	Type    string         `json:"type"`
	Status  StepStatus     `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// ActionResult is the outcome of one action within one execution.
type ActionResult struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Mode      ActionMode       `json:"mode"`
	Status    StepStatus       `json:"status"`
	Output    map[string]any   `json:"output,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Condition *ConditionResult `json:"condition,omitempty"`
	Transform *TransformResult `json:"transform,omitempty"`
}

// ExecutionResult aggregates the per-step results of one execution.
type ExecutionResult struct {
	ExecutionTime     time.Time        `json:"execution_time"`
	ExecutionDuration Duration         `json:"execution_duration"`
	Input             *InputResult     `json:"input,omitempty"`
	Condition         *ConditionResult `json:"condition,omitempty"`
	Transform         *TransformResult `json:"transform,omitempty"`
	Actions           []ActionResult   `json:"actions,omitempty"`
}

// WatchRecord is the history entry of one firing, keyed by the execution id.
type WatchRecord struct {
	ID           string           `json:"id"`
	WatchID      string           `json:"watch_id"`
	NodeID       string           `json:"node,omitempty"`
	State        ExecutionState   `json:"state"`
	TriggerEvent TriggerEvent     `json:"trigger_event"`
	Message      string           `json:"message,omitempty"`
	Result       *ExecutionResult `json:"result,omitempty"`
	Status       *WatchStatus     `json:"status,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ExecutionSnapshot is a point-in-time view of an in-flight execution.
type ExecutionSnapshot struct {
	WatchID         string         `json:"watch_id"`
	WatchRecordID   string         `json:"watch_record_id"`
	TriggeredTime   time.Time      `json:"triggered_time"`
	ExecutionTime   time.Time      `json:"execution_time"`
	Phase           ExecutionPhase `json:"execution_phase"`
	ExecutedActions []string       `json:"executed_actions,omitempty"`
}

// QueuedWatch describes a firing waiting in the executor queue.
type QueuedWatch struct {
	WatchID       string    `json:"watch_id"`
	WatchRecordID string    `json:"watch_record_id"`
	TriggeredTime time.Time `json:"triggered_time"`
	ExecutionTime time.Time `json:"execution_time"`
}

// Stats is the observability surface of the execution engine.
type Stats struct {
	Started           bool                `json:"started"`
	QueueSize         int                 `json:"queue_size"`
	LargestPoolSize   int                 `json:"largest_pool_size"`
	ActiveCount       int                 `json:"active_count"`
	QueuedWatches     []QueuedWatch       `json:"queued_watches"`
	CurrentExecutions []ExecutionSnapshot `json:"current_executions"`
}
