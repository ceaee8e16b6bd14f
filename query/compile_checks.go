package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-pids/core"
	sqlstore "github.com/goliatone/go-pids/store/sql"
)

var (
	_ gocmd.Querier[ReconcilePageMessage, core.ReconcilePageResult]          = (*ReconcilePageQuery)(nil)
	_ gocmd.Querier[ResolveConfigMessage, core.ResolvedConfig]               = (*ResolveConfigQuery)(nil)
	_ gocmd.Querier[ListReconcileReportMessage, sqlstore.ReconcileReportPage] = (*ListReconcileReportQuery)(nil)
	_ ReconcileReportReader                                                   = (*sqlstore.ReconcileReportStore)(nil)
)
