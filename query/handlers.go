package query

import (
	"context"

	"github.com/goliatone/go-pids/core"
	sqlstore "github.com/goliatone/go-pids/store/sql"
)

type ReconcileReader interface {
	ReconcilePage(ctx context.Context, configID string, cursor core.ReconcileCursor) (core.ReconcilePageResult, error)
}

type ConfigResolver interface {
	Resolve(ctx context.Context, configID string) (core.ResolvedConfig, error)
}

type ReconcileReportReader interface {
	List(ctx context.Context, filter sqlstore.ReconcileReportFilter) (sqlstore.ReconcileReportPage, error)
}

type ReconcilePageQuery struct {
	reader ReconcileReader
}

func NewReconcilePageQuery(reader ReconcileReader) *ReconcilePageQuery {
	return &ReconcilePageQuery{reader: reader}
}

func (q *ReconcilePageQuery) Query(ctx context.Context, msg ReconcilePageMessage) (core.ReconcilePageResult, error) {
	if q == nil || q.reader == nil {
		return core.ReconcilePageResult{}, queryDependencyError("query: reconcile reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ReconcilePageResult{}, err
	}
	return q.reader.ReconcilePage(ctx, msg.ConfigID, msg.Cursor)
}

type ResolveConfigQuery struct {
	resolver ConfigResolver
}

func NewResolveConfigQuery(resolver ConfigResolver) *ResolveConfigQuery {
	return &ResolveConfigQuery{resolver: resolver}
}

func (q *ResolveConfigQuery) Query(ctx context.Context, msg ResolveConfigMessage) (core.ResolvedConfig, error) {
	if q == nil || q.resolver == nil {
		return core.ResolvedConfig{}, queryDependencyError("query: config resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ResolvedConfig{}, err
	}
	return q.resolver.Resolve(ctx, msg.ConfigID)
}

type ListReconcileReportQuery struct {
	reader ReconcileReportReader
}

func NewListReconcileReportQuery(reader ReconcileReportReader) *ListReconcileReportQuery {
	return &ListReconcileReportQuery{reader: reader}
}

func (q *ListReconcileReportQuery) Query(
	ctx context.Context,
	msg ListReconcileReportMessage,
) (sqlstore.ReconcileReportPage, error) {
	if q == nil || q.reader == nil {
		return sqlstore.ReconcileReportPage{}, queryDependencyError("query: reconcile report reader is required")
	}
	if err := msg.Validate(); err != nil {
		return sqlstore.ReconcileReportPage{}, err
	}
	return q.reader.List(ctx, msg.Filter)
}
