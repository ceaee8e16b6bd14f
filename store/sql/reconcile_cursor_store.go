package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-pids/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReconcileCursorStore struct {
	db   *bun.DB
	repo repository.Repository[*reconcileCursorRecord]
}

func NewReconcileCursorStore(db *bun.DB) (*ReconcileCursorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*reconcileCursorRecord](db, reconcileCursorHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid reconcile cursor repository wiring: %w", err)
		}
	}
	return &ReconcileCursorStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *ReconcileCursorStore) Load(ctx context.Context, configID string) (core.ReconcileCursor, error) {
	if s == nil || s.db == nil {
		return core.ReconcileCursor{}, fmt.Errorf("sqlstore: reconcile cursor store is not configured")
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return core.ReconcileCursor{}, fmt.Errorf("sqlstore: config id is required")
	}
	record := &reconcileCursorRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.config_id = ?", configID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ReconcileCursor{}, fmt.Errorf("%w: config %q", core.ErrReconcileCursorNotFound, configID)
		}
		return core.ReconcileCursor{}, err
	}
	return record.toDomain(), nil
}

// Save writes the cursor for a config. A non-empty ExpectedLastProcessedID must
// match the stored position, otherwise ErrReconcileCursorConflict is returned
// and nothing is written.
func (s *ReconcileCursorStore) Save(ctx context.Context, in core.SaveReconcileCursorInput) (core.ReconcileCursor, error) {
	if s == nil || s.db == nil {
		return core.ReconcileCursor{}, fmt.Errorf("sqlstore: reconcile cursor store is not configured")
	}
	configID := strings.TrimSpace(in.ConfigID)
	if configID == "" {
		return core.ReconcileCursor{}, fmt.Errorf("sqlstore: config id is required")
	}
	expected := strings.TrimSpace(in.ExpectedLastProcessedID)
	now := time.Now().UTC()

	var out core.ReconcileCursor
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findReconcileCursorTx(ctx, tx, configID)
		if err != nil {
			return err
		}
		if record == nil {
			if expected != "" {
				return core.ErrReconcileCursorConflict
			}
			record = &reconcileCursorRecord{
				ID:        uuid.NewString(),
				ConfigID:  configID,
				CreatedAt: now,
			}
			record.apply(in.Cursor, now)
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					return core.ErrReconcileCursorConflict
				}
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		if expected != "" && record.LastProcessedID != expected {
			return core.ErrReconcileCursorConflict
		}
		record.apply(in.Cursor, now)
		if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ReconcileCursor{}, err
	}
	return out, nil
}

// List returns every persisted cursor keyed by config id.
func (s *ReconcileCursorStore) List(ctx context.Context) (map[string]core.ReconcileCursor, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: reconcile cursor store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("config_id ASC"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.ReconcileCursor, len(records))
	for _, record := range records {
		out[record.ConfigID] = record.toDomain()
	}
	return out, nil
}

func findReconcileCursorTx(ctx context.Context, tx bun.Tx, configID string) (*reconcileCursorRecord, error) {
	record := &reconcileCursorRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.config_id = ?", strings.TrimSpace(configID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
