package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-pids/core"
)

type MutatingService interface {
	Mint(ctx context.Context, configID string, obj core.TargetObject) (core.WriteBack, error)
	Delete(ctx context.Context, configID string, obj core.TargetObject) error
	Update(ctx context.Context, configID string, locator string, newLocation string) error
}

type LifecycleService interface {
	HandleLifecycleEvent(ctx context.Context, obj core.TargetObject, event core.LifecycleEvent) ([]core.ActionOutcome, error)
}

type ReconcileService interface {
	AdvanceReconcile(ctx context.Context, configID string) (core.ReconcilePageResult, error)
}

type MintCommand struct {
	service MutatingService
}

func NewMintCommand(service MutatingService) *MintCommand {
	return &MintCommand{service: service}
}

func (c *MintCommand) Execute(ctx context.Context, msg MintMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: mint service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Mint(ctx, msg.ConfigID, msg.Object)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCommand struct {
	service MutatingService
}

func NewDeleteCommand(service MutatingService) *DeleteCommand {
	return &DeleteCommand{service: service}
}

func (c *DeleteCommand) Execute(ctx context.Context, msg DeleteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delete service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Delete(ctx, msg.ConfigID, msg.Object)
}

type UpdateCommand struct {
	service MutatingService
}

func NewUpdateCommand(service MutatingService) *UpdateCommand {
	return &UpdateCommand{service: service}
}

func (c *UpdateCommand) Execute(ctx context.Context, msg UpdateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: update service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Update(ctx, msg.ConfigID, msg.Locator, msg.Location)
}

type LifecycleEventCommand struct {
	service LifecycleService
}

func NewLifecycleEventCommand(service LifecycleService) *LifecycleEventCommand {
	return &LifecycleEventCommand{service: service}
}

// Execute stores the outcomes that ran even when a later action fails.
func (c *LifecycleEventCommand) Execute(ctx context.Context, msg LifecycleEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: lifecycle service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.HandleLifecycleEvent(ctx, msg.Object, msg.Event)
	storeResult(ctx, out)
	return err
}

type AdvanceReconcileCommand struct {
	service ReconcileService
}

func NewAdvanceReconcileCommand(service ReconcileService) *AdvanceReconcileCommand {
	return &AdvanceReconcileCommand{service: service}
}

func (c *AdvanceReconcileCommand) Execute(ctx context.Context, msg AdvanceReconcileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.AdvanceReconcile(ctx, msg.ConfigID)
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
