package query

import (
	"strings"

	"github.com/goliatone/go-pids/core"
	sqlstore "github.com/goliatone/go-pids/store/sql"
)

const (
	TypeReconcilePage       = "pids.query.reconcile_page"
	TypeResolveConfig       = "pids.query.config.resolve"
	TypeListReconcileReport = "pids.query.reconcile_report.list"
)

// ReconcilePageMessage runs one read-only reconcile page from Cursor. A zero
// cursor starts a new run.
type ReconcilePageMessage struct {
	ConfigID string
	Cursor   core.ReconcileCursor
}

func (ReconcilePageMessage) Type() string { return TypeReconcilePage }

func (m ReconcilePageMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return queryValidationError("config_id", "identifier config id is required")
	}
	if m.Cursor.Completed < 0 || m.Cursor.Total < 0 {
		return queryValidationError("cursor", "cursor counters must be >= 0")
	}
	return nil
}

type ResolveConfigMessage struct {
	ConfigID string
}

func (ResolveConfigMessage) Type() string { return TypeResolveConfig }

func (m ResolveConfigMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return queryValidationError("config_id", "identifier config id is required")
	}
	return nil
}

type ListReconcileReportMessage struct {
	Filter sqlstore.ReconcileReportFilter
}

func (ListReconcileReportMessage) Type() string { return TypeListReconcileReport }

func (m ListReconcileReportMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}
