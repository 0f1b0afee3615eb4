// Package watch parses, validates and caches watch definitions.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var ErrInvalidWatch = errors.New("invalid watch")

// Parser turns watch documents into validated watches. Every component is
// built once so configuration errors surface when the watch is stored, not
// when it fires.
type Parser struct {
	schema     *Schema
	validate   *validator.Validate
	conditions *condition.Registry
	components *registry.Registry
}

func NewParser(conditions *condition.Registry, components *registry.Registry) (*Parser, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}

	return &Parser{
		schema:     schema,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		conditions: conditions,
		components: components,
	}, nil
}

// Parse reads a watch document. A non-empty id overrides the id of the document.
func (p *Parser) Parse(id string, document []byte) (*models.Watch, error) {
	err := p.schema.Validate(document)
	if err != nil {
		return nil, err
	}

	var watch models.Watch

	err = json.Unmarshal(document, &watch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWatch, err)
	}

	if id != "" {
		watch.ID = id
	}

	err = p.Validate(&watch)
	if err != nil {
		return nil, err
	}

	return &watch, nil
}

// Validate checks the struct rules and builds every component of the watch.
func (p *Parser) Validate(watch *models.Watch) error {
	err := p.validate.Struct(watch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWatch, err)
	}

	if schedule := watch.Trigger.Schedule; schedule != nil {
		err = validateSchedule(schedule)
		if err != nil {
			return fmt.Errorf("%w [%s]: %w", ErrInvalidWatch, watch.ID, err)
		}
	}

	if len(watch.Input) > 0 {
		_, err = p.components.CreateInput(watch.Input)
		if err != nil {
			return fmt.Errorf("%w [%s]: %w", ErrInvalidWatch, watch.ID, err)
		}
	}

	if len(watch.Condition) > 0 {
		_, err = p.conditions.ParseExecutable(watch.ID, watch.Condition)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidWatch, err)
		}
	}

	if len(watch.Transform) > 0 {
		_, err = p.components.CreateTransform(watch.Transform)
		if err != nil {
			return fmt.Errorf("%w [%s]: %w", ErrInvalidWatch, watch.ID, err)
		}
	}

	if watch.ThrottlePeriod != nil && watch.ThrottlePeriod.Std() < 0 {
		return fmt.Errorf("%w [%s]: negative throttle period", ErrInvalidWatch, watch.ID)
	}

	seen := make(map[string]bool, len(watch.Actions))

	for _, action := range watch.Actions {
		if seen[action.ID] {
			return fmt.Errorf("%w [%s]: duplicate action id '%s'", ErrInvalidWatch, watch.ID, action.ID)
		}

		seen[action.ID] = true

		err = p.validateAction(watch.ID, action)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Parser) validateAction(watchID string, action models.ActionItem) error {
	_, err := p.components.CreateAction(action.Type, action.Config)
	if err != nil {
		return fmt.Errorf("%w [%s]: action '%s': %w", ErrInvalidWatch, watchID, action.ID, err)
	}

	if len(action.Condition) > 0 {
		_, err = p.conditions.ParseExecutable(watchID, action.Condition)
		if err != nil {
			return fmt.Errorf("%w: action '%s': %w", ErrInvalidWatch, action.ID, err)
		}
	}

	if len(action.Transform) > 0 {
		_, err = p.components.CreateTransform(action.Transform)
		if err != nil {
			return fmt.Errorf("%w [%s]: action '%s': %w", ErrInvalidWatch, watchID, action.ID, err)
		}
	}

	if action.ThrottlePeriod != nil && action.ThrottlePeriod.Std() < 0 {
		return fmt.Errorf("%w [%s]: action '%s': negative throttle period", ErrInvalidWatch, watchID, action.ID)
	}

	return nil
}

func validateSchedule(schedule *models.ScheduleTrigger) error {
	if schedule.Cron != "" && schedule.Interval != nil {
		return errors.New("schedule takes either cron or interval, not both")
	}

	if schedule.Interval != nil {
		if schedule.Interval.Std() <= 0 {
			return errors.New("schedule interval must be positive")
		}

		return nil
	}

	_, err := cron.ParseStandard(schedule.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", schedule.Cron, err)
	}

	return nil
}
