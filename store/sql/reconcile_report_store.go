package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-pids/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReconcileReportFilter struct {
	ConfigID string
	Status   core.ReconcileStatus
	Page     int
	PerPage  int
}

type ReconcileReportPage struct {
	Items   []core.ReconcileResult
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type ReconcileReportStore struct {
	db   *bun.DB
	repo repository.Repository[*reconcileResultRecord]
}

func NewReconcileReportStore(db *bun.DB) (*ReconcileReportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*reconcileResultRecord](db, reconcileResultHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid reconcile result repository wiring: %w", err)
		}
	}
	return &ReconcileReportStore{
		db:   db,
		repo: repo,
	}, nil
}

// Record appends the results of one reconcile page in a single transaction.
func (s *ReconcileReportStore) Record(ctx context.Context, configID string, results []core.ReconcileResult) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: reconcile report store is not configured")
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return fmt.Errorf("sqlstore: config id is required")
	}
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*reconcileResultRecord, 0, len(results))
	for _, result := range results {
		record := newReconcileResultRecord(configID, result, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ReconcileReportStore) List(ctx context.Context, filter ReconcileReportFilter) (ReconcileReportPage, error) {
	if s == nil || s.repo == nil {
		return ReconcileReportPage{}, fmt.Errorf("sqlstore: reconcile report store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("object_id ASC"),
		repository.SelectPaginate(perPage, offset),
	}
	if configID := strings.TrimSpace(filter.ConfigID); configID != "" {
		selectors = append(selectors, repository.SelectBy("config_id", "=", configID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return ReconcileReportPage{}, err
	}
	items := make([]core.ReconcileResult, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return ReconcileReportPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// Prune drops results recorded before the cutoff and returns how many went.
func (s *ReconcileReportStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: reconcile report store is not configured")
	}
	if before.IsZero() {
		return 0, fmt.Errorf("sqlstore: prune cutoff is required")
	}
	result, err := s.db.NewDelete().
		Model((*reconcileResultRecord)(nil)).
		Where("created_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
