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
	"github.com/uptrace/bun"
)

// ConfigStore is the writable configuration surface shared by the SQL store
// and its cached wrapper.
type ConfigStore interface {
	core.ConfigSource
	SaveIdentifierConfig(ctx context.Context, cfg core.IdentifierConfig) (core.IdentifierConfig, error)
	SaveBackend(ctx context.Context, backend core.BackendConfig) (core.BackendConfig, error)
	SaveProfile(ctx context.Context, profile core.DataProfile) (core.DataProfile, error)
	DeleteIdentifierConfig(ctx context.Context, id string) error
}

type IdentifierConfigStore struct {
	db          *bun.DB
	configRepo  repository.Repository[*identifierConfigRecord]
	backendRepo repository.Repository[*serviceBackendRecord]
	profileRepo repository.Repository[*dataProfileRecord]
}

func NewIdentifierConfigStore(db *bun.DB) (*IdentifierConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	configRepo := repository.NewRepository[*identifierConfigRecord](db, identifierConfigHandlers())
	if validator, ok := configRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid identifier config repository wiring: %w", err)
		}
	}
	backendRepo := repository.NewRepository[*serviceBackendRecord](db, serviceBackendHandlers())
	if validator, ok := backendRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid service backend repository wiring: %w", err)
		}
	}
	profileRepo := repository.NewRepository[*dataProfileRecord](db, dataProfileHandlers())
	if validator, ok := profileRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid data profile repository wiring: %w", err)
		}
	}
	return &IdentifierConfigStore{
		db:          db,
		configRepo:  configRepo,
		backendRepo: backendRepo,
		profileRepo: profileRepo,
	}, nil
}

func (s *IdentifierConfigStore) GetIdentifierConfig(ctx context.Context, id string) (core.IdentifierConfig, error) {
	if s == nil || s.db == nil {
		return core.IdentifierConfig{}, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &identifierConfigRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.IdentifierConfig{}, fmt.Errorf("%w: id %q", core.ErrConfigNotFound, id)
		}
		return core.IdentifierConfig{}, err
	}
	return record.toDomain(), nil
}

func (s *IdentifierConfigStore) GetBackend(ctx context.Context, id string) (core.BackendConfig, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &serviceBackendRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %q", core.ErrBackendNotFound, id)
		}
		return nil, err
	}
	return record.toDomain()
}

func (s *IdentifierConfigStore) GetProfile(ctx context.Context, id string) (core.DataProfile, error) {
	if s == nil || s.db == nil {
		return core.DataProfile{}, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &dataProfileRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DataProfile{}, fmt.Errorf("%w: id %q", core.ErrProfileNotFound, id)
		}
		return core.DataProfile{}, err
	}
	return record.toDomain(), nil
}

func (s *IdentifierConfigStore) ListIdentifierConfigs(ctx context.Context) ([]core.IdentifierConfig, error) {
	if s == nil || s.configRepo == nil {
		return nil, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	records, _, err := s.configRepo.List(ctx, repository.OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.IdentifierConfig, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *IdentifierConfigStore) ListBackends(ctx context.Context, kind core.BackendKind) ([]core.BackendConfig, error) {
	if s == nil || s.backendRepo == nil {
		return nil, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	selectors := []repository.SelectCriteria{repository.OrderBy("id ASC")}
	if kind != "" {
		selectors = append(selectors, repository.SelectBy("kind", "=", string(kind)))
	}
	records, _, err := s.backendRepo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.BackendConfig, 0, len(records))
	for _, record := range records {
		backend, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, backend)
	}
	return out, nil
}

func (s *IdentifierConfigStore) ListProfiles(ctx context.Context) ([]core.DataProfile, error) {
	if s == nil || s.profileRepo == nil {
		return nil, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	records, _, err := s.profileRepo.List(ctx, repository.OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.DataProfile, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *IdentifierConfigStore) SaveIdentifierConfig(ctx context.Context, cfg core.IdentifierConfig) (core.IdentifierConfig, error) {
	if s == nil || s.db == nil {
		return core.IdentifierConfig{}, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	if err := cfg.Validate(); err != nil {
		return core.IdentifierConfig{}, err
	}
	record := newIdentifierConfigRecord(cfg, time.Now().UTC())

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &identifierConfigRecord{}
		found, err := findByIDTx(ctx, tx, existing, record.ID)
		if err != nil {
			return err
		}
		if !found {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		record.CreatedAt = existing.CreatedAt
		_, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.IdentifierConfig{}, err
	}
	return record.toDomain(), nil
}

// SaveBackend upserts a backend. An empty incoming password keeps the stored
// one, which is how edit forms leave credentials untouched.
func (s *IdentifierConfigStore) SaveBackend(ctx context.Context, backend core.BackendConfig) (core.BackendConfig, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	if backend == nil {
		return nil, fmt.Errorf("sqlstore: backend is required")
	}
	record := newServiceBackendRecord(backend, time.Now().UTC())
	if record.ID == "" {
		return nil, fmt.Errorf("sqlstore: backend id is required")
	}

	var out core.BackendConfig
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &serviceBackendRecord{}
		found, err := findByIDTx(ctx, tx, existing, record.ID)
		if err != nil {
			return err
		}
		if found {
			record.CreatedAt = existing.CreatedAt
			if record.Password == "" {
				record.Password = existing.Password
			}
		}
		merged, err := record.toDomain()
		if err != nil {
			return err
		}
		if err := merged.Validate(); err != nil {
			return err
		}
		if found {
			_, err = tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
		} else {
			_, err = tx.NewInsert().Model(record).Exec(ctx)
		}
		if err != nil {
			return err
		}
		out = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IdentifierConfigStore) SaveProfile(ctx context.Context, profile core.DataProfile) (core.DataProfile, error) {
	if s == nil || s.db == nil {
		return core.DataProfile{}, fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	if strings.TrimSpace(profile.ID) == "" {
		return core.DataProfile{}, fmt.Errorf("sqlstore: data profile id is required")
	}
	if err := profile.Validate(); err != nil {
		return core.DataProfile{}, err
	}
	record := newDataProfileRecord(profile, time.Now().UTC())

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &dataProfileRecord{}
		found, err := findByIDTx(ctx, tx, existing, record.ID)
		if err != nil {
			return err
		}
		if !found {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		record.CreatedAt = existing.CreatedAt
		_, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.DataProfile{}, err
	}
	return record.toDomain(), nil
}

func (s *IdentifierConfigStore) DeleteIdentifierConfig(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: identifier config store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: identifier config id is required")
	}
	result, err := s.db.NewDelete().
		Model((*identifierConfigRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, rowsErr := result.RowsAffected(); rowsErr == nil && affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrConfigNotFound, id)
	}
	return nil
}

func findByIDTx(ctx context.Context, tx bun.Tx, model any, id string) (bool, error) {
	err := tx.NewSelect().Model(model).Where("?TableAlias.id = ?", strings.TrimSpace(id)).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
