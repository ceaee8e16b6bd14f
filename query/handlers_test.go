package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-pids/core"
	sqlstore "github.com/goliatone/go-pids/store/sql"
)

func TestReconcilePageQuery_DelegatesCursor(t *testing.T) {
	reader := stubReconcileReader{
		pageFn: func(_ context.Context, configID string, cursor core.ReconcileCursor) (core.ReconcilePageResult, error) {
			if configID != "article_ark" || cursor.LastProcessedID != "010" {
				t.Fatalf("unexpected reconcile payload: %q %#v", configID, cursor)
			}
			return core.ReconcilePageResult{ConfigID: configID, Progress: 0.5}, nil
		},
	}
	out, err := NewReconcilePageQuery(reader).Query(context.Background(), ReconcilePageMessage{
		ConfigID: "article_ark",
		Cursor:   core.ReconcileCursor{LastProcessedID: "010", Total: 20, Completed: 10, Started: true},
	})
	if err != nil {
		t.Fatalf("query reconcile page: %v", err)
	}
	if out.Progress != 0.5 {
		t.Fatalf("unexpected page: %#v", out)
	}
}

func TestResolveConfigQuery_Delegates(t *testing.T) {
	resolver := stubConfigResolver{
		resolveFn: func(_ context.Context, configID string) (core.ResolvedConfig, error) {
			return core.ResolvedConfig{Config: core.IdentifierConfig{ID: configID}}, nil
		},
	}
	out, err := NewResolveConfigQuery(resolver).Query(context.Background(), ResolveConfigMessage{ConfigID: "article_ark"})
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if out.Config.ID != "article_ark" {
		t.Fatalf("unexpected resolved config: %#v", out)
	}
}

func TestListReconcileReportQuery_Delegates(t *testing.T) {
	reader := stubReportReader{
		listFn: func(_ context.Context, filter sqlstore.ReconcileReportFilter) (sqlstore.ReconcileReportPage, error) {
			if filter.Status != core.ReconcileStatusMismatch {
				t.Fatalf("expected mismatch filter, got %q", filter.Status)
			}
			return sqlstore.ReconcileReportPage{Total: 1, Items: []core.ReconcileResult{{ObjectID: "2"}}}, nil
		},
	}
	page, err := NewListReconcileReportQuery(reader).Query(context.Background(), ListReconcileReportMessage{
		Filter: sqlstore.ReconcileReportFilter{ConfigID: "article_ark", Status: core.ReconcileStatusMismatch},
	})
	if err != nil {
		t.Fatalf("list report: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("unexpected report page: %#v", page)
	}
}

func TestMessages_Validate(t *testing.T) {
	tests := []struct {
		name      string
		msg       interface{ Validate() error }
		wantField string
	}{
		{name: "reconcile ok", msg: ReconcilePageMessage{ConfigID: "c"}},
		{name: "reconcile missing config", msg: ReconcilePageMessage{}, wantField: "config_id"},
		{name: "reconcile negative cursor", msg: ReconcilePageMessage{ConfigID: "c", Cursor: core.ReconcileCursor{Total: -1}}, wantField: "cursor"},
		{name: "resolve missing config", msg: ResolveConfigMessage{}, wantField: "config_id"},
		{name: "report negative page", msg: ListReconcileReportMessage{Filter: sqlstore.ReconcileReportFilter{Page: -1}}, wantField: "page"},
		{name: "report ok", msg: ListReconcileReportMessage{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryValidation || rich.Code != http.StatusBadRequest {
				t.Fatalf("unexpected envelope %q/%d", rich.Category, rich.Code)
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
			}
			validation := rich.AllValidationErrors()
			if len(validation) == 0 || validation[0].Field != tt.wantField {
				t.Fatalf("expected validation field %q, got %#v", tt.wantField, validation)
			}
		})
	}
}

func TestReconcilePageQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *ReconcilePageQuery
	_, err := q.Query(context.Background(), ReconcilePageMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

type stubReconcileReader struct {
	pageFn func(ctx context.Context, configID string, cursor core.ReconcileCursor) (core.ReconcilePageResult, error)
}

func (s stubReconcileReader) ReconcilePage(ctx context.Context, configID string, cursor core.ReconcileCursor) (core.ReconcilePageResult, error) {
	return s.pageFn(ctx, configID, cursor)
}

type stubConfigResolver struct {
	resolveFn func(ctx context.Context, configID string) (core.ResolvedConfig, error)
}

func (s stubConfigResolver) Resolve(ctx context.Context, configID string) (core.ResolvedConfig, error) {
	return s.resolveFn(ctx, configID)
}

type stubReportReader struct {
	listFn func(ctx context.Context, filter sqlstore.ReconcileReportFilter) (sqlstore.ReconcileReportPage, error)
}

func (s stubReportReader) List(ctx context.Context, filter sqlstore.ReconcileReportFilter) (sqlstore.ReconcileReportPage, error) {
	return s.listFn(ctx, filter)
}
