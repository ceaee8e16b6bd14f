package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	configStore          *IdentifierConfigStore
	reconcileCursorStore *ReconcileCursorStore
	reconcileReportStore *ReconcileReportStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.configStore != nil && f.reconcileCursorStore != nil && f.reconcileReportStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) IdentifierConfigStore() *IdentifierConfigStore {
	if f == nil {
		return nil
	}
	return f.configStore
}

func (f *RepositoryFactory) ReconcileCursorStore() *ReconcileCursorStore {
	if f == nil {
		return nil
	}
	return f.reconcileCursorStore
}

func (f *RepositoryFactory) ReconcileReportStore() *ReconcileReportStore {
	if f == nil {
		return nil
	}
	return f.reconcileReportStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	configStore, err := NewIdentifierConfigStore(f.db)
	if err != nil {
		return err
	}
	f.configStore = configStore
	cursorStore, err := NewReconcileCursorStore(f.db)
	if err != nil {
		return err
	}
	f.reconcileCursorStore = cursorStore
	reportStore, err := NewReconcileReportStore(f.db)
	if err != nil {
		return err
	}
	f.reconcileReportStore = reportStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
