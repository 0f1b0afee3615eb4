package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/otelhelper"
	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/registry"
)

const inputAlternative = "alternative"

var alwaysCondition = json.RawMessage(`{"always": {}}`)

func (s *Service) resolveInput(ctx context.Context, ec *Context) (*models.InputResult, error) {
	if ec.alternativeInput != nil {
		payload := models.DeepCopyMap(ec.alternativeInput)
		ec.setPayload(payload)

		return &models.InputResult{Type: inputAlternative, Status: models.StepSuccess, Payload: models.DeepCopyMap(payload)}, nil
	}

	if len(ec.watch.Input) == 0 {
		return &models.InputResult{Type: "none", Status: models.StepSuccess}, nil
	}

	inputType, _, _ := registry.SplitTyped(ec.watch.Input)
	result := &models.InputResult{Type: inputType}

	input, err := s.components.CreateInput(ec.watch.Input)
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, fmt.Errorf("failed to create input: %w", err)
	}

	payload, err := input.Execute(ctx, ec.Model())
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, fmt.Errorf("failed to execute input '%s': %w", inputType, err)
	}

	ec.setPayload(payload)

	result.Status = models.StepSuccess
	result.Payload = models.DeepCopyMap(payload)

	return result, nil
}

func (s *Service) evaluateWatchCondition(ec *Context) (*models.ConditionResult, error) {
	if ec.ignoreCondition {
		return &models.ConditionResult{Type: condition.TypeAlways, Status: models.StepSuccess, Met: true}, nil
	}

	raw := ec.watch.Condition
	if len(raw) == 0 {
		raw = alwaysCondition
	}

	return s.evaluateCondition(ec.WatchID(), raw, ec)
}

func (s *Service) evaluateCondition(watchID string, raw json.RawMessage, cctx condition.Context) (*models.ConditionResult, error) {
	result := &models.ConditionResult{}

	executable, err := s.conditions.ParseExecutable(watchID, raw)
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, err
	}

	result.Type = executable.Condition().Type()

	evaluated, err := executable.Execute(cctx)
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, fmt.Errorf("failed to execute condition '%s': %w", result.Type, err)
	}

	result.Status = models.StepSuccess
	result.Met = evaluated.Met
	result.Detail = evaluated.Detail

	return result, nil
}

func (s *Service) transform(ctx context.Context, raw json.RawMessage, model map[string]any) (*models.TransformResult, error) {
	transformType, _, _ := registry.SplitTyped(raw)
	result := &models.TransformResult{Type: transformType}

	transform, err := s.components.CreateTransform(raw)
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, fmt.Errorf("failed to create transform: %w", err)
	}

	payload, err := transform.Execute(ctx, model)
	if err != nil {
		result.Status = models.StepFailure
		result.Reason = err.Error()

		return result, fmt.Errorf("failed to execute transform '%s': %w", transformType, err)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	result.Status = models.StepSuccess
	result.Payload = payload

	return result, nil
}

// actionContext evaluates an action condition against the action's own model.
type actionContext struct {
	*Context
	model map[string]any
}

func (a actionContext) Model() map[string]any {
	return a.model
}

// executeAction runs one action. Its failures end up in the result and never
// stop the following actions.
func (s *Service) executeAction(ctx context.Context, ec *Context, item models.ActionItem, now time.Time) models.ActionResult {
	mode := ec.actionMode(item.ID)
	result := models.ActionResult{ID: item.ID, Type: item.Type, Mode: mode}

	if mode == models.ActionModeSkip {
		result.Status = models.StepSkipped

		return result
	}

	if !mode.Force() && !ec.ignoreThrottle {
		throttled, reason := s.throttler.Action(ec.watch.Status.Actions[item.ID], item.ThrottlePeriod, now)
		if throttled {
			ec.updateStatus(func(status *models.WatchStatus) {
				status.OnActionThrottled(item.ID, reason, now)
			})

			result.Status = models.StepThrottled
			result.Reason = reason

			return result
		}
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "watcher.action",
		attribute.String(otelhelper.ActionIDKey, item.ID),
		attribute.String(otelhelper.ActionTypeKey, item.Type),
	)
	defer span.End()

	model := ec.modelFor(item.ID, models.DeepCopyMap(ec.Payload()))

	fail := func(err error) models.ActionResult {
		otelhelper.SetError(span, err)

		result.Status = models.StepFailure
		result.Reason = err.Error()

		if !mode.Simulate() {
			ec.updateStatus(func(status *models.WatchStatus) {
				status.OnActionResult(item.ID, false, err.Error(), now)
			})
		}

		s.logger.WarnContext(ctx, "Watch action failed",
			"watch_id", ec.WatchID(), "wid", ec.wid.String(), "action_id", item.ID, "error", err)

		return result
	}

	if len(item.Condition) > 0 {
		conditionResult, err := s.evaluateCondition(ec.WatchID(), item.Condition, actionContext{Context: ec, model: model})
		result.Condition = conditionResult

		if err != nil {
			return fail(err)
		}

		if !conditionResult.Met {
			result.Status = models.StepConditionFailed
			result.Reason = "condition not met"

			return result
		}
	}

	if len(item.Transform) > 0 {
		transformResult, err := s.transform(ctx, item.Transform, model)
		result.Transform = transformResult

		if err != nil {
			return fail(err)
		}

		model["ctx"].(map[string]any)["payload"] = transformResult.Payload
	}

	action, err := s.components.CreateAction(item.Type, item.Config)
	if err != nil {
		return fail(fmt.Errorf("failed to create action: %w", err))
	}

	if mode.Simulate() {
		output, err := recoverAction(func() (any, error) {
			return simulate(ctx, action, item, model)
		})
		if err != nil {
			return fail(err)
		}

		result.Status = models.StepSimulated
		result.Output = outputMap(output)

		return result
	}

	logger := s.logger.With("watch_id", ec.WatchID(), "wid", ec.wid.String(), "action_id", item.ID)

	output, err := recoverAction(func() (any, error) {
		return action.Execute(ctx, model, logger)
	})

	ec.onActionExecuted(item.ID)

	if err != nil {
		return fail(err)
	}

	ec.updateStatus(func(status *models.WatchStatus) {
		status.OnActionResult(item.ID, true, "", now)
	})

	result.Status = models.StepSuccess
	result.Output = outputMap(output)

	return result
}

func simulate(ctx context.Context, action protocol.Action, item models.ActionItem, model map[string]any) (any, error) {
	if simulator, ok := action.(protocol.Simulator); ok {
		return simulator.Simulate(ctx, model)
	}

	return map[string]any{"type": item.Type, "config": models.DeepCopyMap(item.Config)}, nil
}

func recoverAction(fn func() (any, error)) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	return fn()
}

func outputMap(output any) map[string]any {
	switch out := output.(type) {
	case nil:
		return nil
	case map[string]any:
		return out
	default:
		return map[string]any{"result": out}
	}
}
