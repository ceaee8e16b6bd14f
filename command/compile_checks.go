package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[MintMessage]             = (*MintCommand)(nil)
	_ gocmd.Commander[DeleteMessage]           = (*DeleteCommand)(nil)
	_ gocmd.Commander[UpdateMessage]           = (*UpdateCommand)(nil)
	_ gocmd.Commander[LifecycleEventMessage]   = (*LifecycleEventCommand)(nil)
	_ gocmd.Commander[AdvanceReconcileMessage] = (*AdvanceReconcileCommand)(nil)
)
