package sqlstore

import "github.com/goliatone/go-pids/core"

var (
	_ core.ConfigSource         = (*IdentifierConfigStore)(nil)
	_ ConfigStore               = (*IdentifierConfigStore)(nil)
	_ ConfigStore               = (*CachedConfigSource)(nil)
	_ core.ReconcileCursorStore = (*ReconcileCursorStore)(nil)
	_ core.ReconcileReportSink  = (*ReconcileReportStore)(nil)
)
