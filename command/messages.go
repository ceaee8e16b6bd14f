package command

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-pids/core"
)

const (
	TypeMint             = "pids.command.mint"
	TypeDelete           = "pids.command.delete"
	TypeUpdate           = "pids.command.update"
	TypeLifecycleEvent   = "pids.command.lifecycle_event"
	TypeAdvanceReconcile = "pids.command.reconcile.advance"
)

type MintMessage struct {
	ConfigID string
	Object   core.TargetObject
}

func (MintMessage) Type() string { return TypeMint }

func (m MintMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return commandValidationError("config_id", "identifier config id is required")
	}
	if isNilObject(m.Object) {
		return commandValidationError("object", "target object is required")
	}
	return nil
}

type DeleteMessage struct {
	ConfigID string
	Object   core.TargetObject
}

func (DeleteMessage) Type() string { return TypeDelete }

func (m DeleteMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return commandValidationError("config_id", "identifier config id is required")
	}
	if isNilObject(m.Object) {
		return commandValidationError("object", "target object is required")
	}
	return nil
}

// UpdateMessage repoints an existing identifier. Locator accepts a resolver
// URL or a bare prefix/suffix handle.
type UpdateMessage struct {
	ConfigID string
	Locator  string
	Location string
}

func (UpdateMessage) Type() string { return TypeUpdate }

func (m UpdateMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return commandValidationError("config_id", "identifier config id is required")
	}
	if strings.TrimSpace(m.Locator) == "" {
		return commandValidationError("locator", "identifier locator is required")
	}
	if strings.TrimSpace(m.Location) == "" {
		return commandValidationError("location", "new location is required")
	}
	return nil
}

type LifecycleEventMessage struct {
	Object core.TargetObject
	Event  core.LifecycleEvent
}

func (LifecycleEventMessage) Type() string { return TypeLifecycleEvent }

func (m LifecycleEventMessage) Validate() error {
	if isNilObject(m.Object) {
		return commandValidationError("object", "target object is required")
	}
	switch m.Event {
	case core.LifecycleEventInsert, core.LifecycleEventUpdate, core.LifecycleEventDelete:
		return nil
	default:
		return commandValidationError("event", "event must be insert, update or delete")
	}
}

type AdvanceReconcileMessage struct {
	ConfigID string
}

func (AdvanceReconcileMessage) Type() string { return TypeAdvanceReconcile }

func (m AdvanceReconcileMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return commandValidationError("config_id", "identifier config id is required")
	}
	return nil
}

func isNilObject(obj core.TargetObject) bool {
	if obj == nil {
		return true
	}
	value := reflect.ValueOf(obj)
	return value.Kind() == reflect.Pointer && value.IsNil()
}
