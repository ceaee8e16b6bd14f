package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type LifecycleEvent string

const (
	LifecycleEventInsert LifecycleEvent = "insert"
	LifecycleEventUpdate LifecycleEvent = "update"
	LifecycleEventDelete LifecycleEvent = "delete"
)

type Operation string

const (
	OperationMint   Operation = "mint"
	OperationDelete Operation = "delete"
)

type TriggerAction struct {
	ConfigID  string
	Operation Operation
}

// TriggerEvaluator decides when mint and delete fire. Governs reports whether
// obj is bound to configID at all, independent of any firing condition; the
// reconciler only compares governed objects.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, obj TargetObject, event LifecycleEvent) ([]TriggerAction, error)
	Governs(ctx context.Context, obj TargetObject, configID string) bool
}

type TriggerPredicate func(obj TargetObject) bool

// WhenFieldEmpty fires only while field is unset. Pair it with mint rules to
// avoid re-minting a populated field.
func WhenFieldEmpty(field string) TriggerPredicate {
	field = strings.TrimSpace(field)
	return func(obj TargetObject) bool {
		return strings.TrimSpace(obj.Get(field)) == ""
	}
}

// WhenFieldPresent is the delete-side counterpart of WhenFieldEmpty.
func WhenFieldPresent(field string) TriggerPredicate {
	empty := WhenFieldEmpty(field)
	return func(obj TargetObject) bool {
		return !empty(obj)
	}
}

type TriggerRule struct {
	EntityType string
	Bundle     string
	Events     []LifecycleEvent
	Action     TriggerAction
	When       TriggerPredicate
}

func (r TriggerRule) Validate() error {
	if strings.TrimSpace(r.EntityType) == "" || strings.TrimSpace(r.Bundle) == "" {
		return fmt.Errorf("core: trigger rule entity type and bundle are required")
	}
	if strings.TrimSpace(r.Action.ConfigID) == "" {
		return fmt.Errorf("core: trigger rule config id is required")
	}
	switch r.Action.Operation {
	case OperationMint, OperationDelete:
	default:
		return fmt.Errorf("core: trigger rule operation %q is invalid", r.Action.Operation)
	}
	if len(r.Events) == 0 {
		return fmt.Errorf("core: trigger rule requires at least one event")
	}
	return nil
}

func (r TriggerRule) binds(obj TargetObject) bool {
	return strings.EqualFold(strings.TrimSpace(r.EntityType), strings.TrimSpace(obj.EntityType())) &&
		strings.EqualFold(strings.TrimSpace(r.Bundle), strings.TrimSpace(obj.Bundle()))
}

func (r TriggerRule) firesOn(event LifecycleEvent) bool {
	for _, candidate := range r.Events {
		if candidate == event {
			return true
		}
	}
	return false
}

// RuleTriggerEvaluator is a static rule table evaluated in declaration order.
type RuleTriggerEvaluator struct {
	rules []TriggerRule
}

func NewRuleTriggerEvaluator(rules ...TriggerRule) (*RuleTriggerEvaluator, error) {
	copied := make([]TriggerRule, 0, len(rules))
	for idx, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("core: trigger rule %d: %w", idx, err)
		}
		rule.Events = append([]LifecycleEvent(nil), rule.Events...)
		copied = append(copied, rule)
	}
	return &RuleTriggerEvaluator{rules: copied}, nil
}

func (e *RuleTriggerEvaluator) Evaluate(_ context.Context, obj TargetObject, event LifecycleEvent) ([]TriggerAction, error) {
	if e == nil {
		return nil, nil
	}
	if isNilObject(obj) {
		return nil, PreconditionFailure(ReasonObjectUnavailable, "core: object is unavailable for trigger evaluation", nil)
	}
	actions := make([]TriggerAction, 0)
	for _, rule := range e.rules {
		if !rule.binds(obj) || !rule.firesOn(event) {
			continue
		}
		if rule.When != nil && !rule.When(obj) {
			continue
		}
		actions = append(actions, rule.Action)
	}
	return actions, nil
}

func (e *RuleTriggerEvaluator) Governs(_ context.Context, obj TargetObject, configID string) bool {
	if e == nil || isNilObject(obj) {
		return false
	}
	configID = strings.TrimSpace(configID)
	for _, rule := range e.rules {
		if rule.binds(obj) && rule.Action.ConfigID == configID {
			return true
		}
	}
	return false
}

type ActionOutcome struct {
	Action    TriggerAction
	WriteBack *WriteBack
}

// HandleLifecycleEvent runs the actions the trigger evaluator selects for
// event, in order, and stops at the first failure. Outcomes of the actions
// that ran are returned alongside the error.
func (s *Service) HandleLifecycleEvent(ctx context.Context, obj TargetObject, event LifecycleEvent) ([]ActionOutcome, error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"event": string(event)}
	outcomes, err := s.handleLifecycleEvent(ctx, obj, event, fields)
	err = annotateError(err, fields)
	fields["actions"] = len(outcomes)
	s.observeOperation(ctx, startedAt, "lifecycle_event", err, fields)
	return outcomes, err
}

func (s *Service) handleLifecycleEvent(
	ctx context.Context,
	obj TargetObject,
	event LifecycleEvent,
	fields map[string]any,
) ([]ActionOutcome, error) {
	if s == nil {
		return nil, InternalError(nil, "core: service is not configured", nil)
	}
	if s.triggers == nil {
		return nil, ConfigIncompleteError("core: trigger evaluator is not configured", nil)
	}
	if !isNilObject(obj) {
		fields["object_id"] = obj.StableID()
	}
	actions, err := s.triggers.Evaluate(ctx, obj, event)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ActionOutcome, 0, len(actions))
	for _, action := range actions {
		switch action.Operation {
		case OperationMint:
			writeBack, err := s.Mint(ctx, action.ConfigID, obj)
			if err != nil {
				fields["config_id"] = action.ConfigID
				return outcomes, err
			}
			outcomes = append(outcomes, ActionOutcome{Action: action, WriteBack: &writeBack})
		case OperationDelete:
			if err := s.Delete(ctx, action.ConfigID, obj); err != nil {
				fields["config_id"] = action.ConfigID
				return outcomes, err
			}
			outcomes = append(outcomes, ActionOutcome{Action: action})
		default:
			return outcomes, BadInputError(fmt.Sprintf("core: unsupported trigger operation %q", action.Operation), map[string]any{
				"config_id": action.ConfigID,
			})
		}
	}
	return outcomes, nil
}
