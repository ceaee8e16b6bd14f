package pids

import (
	"fmt"

	"github.com/goliatone/go-pids/core"
	"github.com/goliatone/go-pids/providers/ezid"
	"github.com/goliatone/go-pids/providers/handle"
	sqlstore "github.com/goliatone/go-pids/store/sql"
	"github.com/goliatone/go-pids/transport"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type (
	IdentifierConfig = core.IdentifierConfig
	BackendConfig    = core.BackendConfig
	EZIDBackend      = core.EZIDBackend
	HandleBackend    = core.HandleBackend
	DataProfile      = core.DataProfile
	FieldMapping     = core.FieldMapping
	TargetObject     = core.TargetObject
	WriteBack        = core.WriteBack
	LifecycleEvent   = core.LifecycleEvent
	TriggerAction    = core.TriggerAction
	ActionOutcome    = core.ActionOutcome
)

type (
	ReconcileCursor     = core.ReconcileCursor
	ReconcileResult     = core.ReconcileResult
	ReconcilePageResult = core.ReconcilePageResult
)

var (
	WithLogger               = core.WithLogger
	WithLoggerProvider       = core.WithLoggerProvider
	WithMetricsRecorder      = core.WithMetricsRecorder
	WithErrorMapper          = core.WithErrorMapper
	WithConfigProvider       = core.WithConfigProvider
	WithOptionsResolver      = core.WithOptionsResolver
	WithConfigSource         = core.WithConfigSource
	WithFieldSchema          = core.WithFieldSchema
	WithTransport            = core.WithTransport
	WithProtocolAdapters     = core.WithProtocolAdapters
	WithObjectSource         = core.WithObjectSource
	WithTriggerEvaluator     = core.WithTriggerEvaluator
	WithReconcileCursorStore = core.WithReconcileCursorStore
	WithReconcileReportSink  = core.WithReconcileReportSink
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service from exactly the given options.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service with the REST transport and the EZID and Handle
// adapters installed. Caller options are applied after these defaults and
// replace them.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	defaults := []Option{
		core.WithTransport(transport.NewRESTAdapter(nil)),
		core.WithProtocolAdapters(ezid.New(), handle.New()),
	}
	return core.Setup(cfg, append(defaults, opts...)...)
}

// StoreOptions returns the options that back a service with the SQL stores
// built by factory. When cacheService is not nil, configuration reads go
// through a CachedConfigSource.
func StoreOptions(factory *sqlstore.RepositoryFactory, cacheService repositorycache.CacheService) ([]Option, error) {
	if factory == nil || factory.IdentifierConfigStore() == nil {
		return nil, fmt.Errorf("pids: repository factory is required")
	}
	var source core.ConfigSource = factory.IdentifierConfigStore()
	if cacheService != nil {
		cached, err := sqlstore.NewCachedConfigSource(factory.IdentifierConfigStore(), cacheService)
		if err != nil {
			return nil, err
		}
		source = cached
	}

	opts := []Option{core.WithConfigSource(source)}
	if store := factory.ReconcileCursorStore(); store != nil {
		opts = append(opts, core.WithReconcileCursorStore(store))
	}
	if store := factory.ReconcileReportStore(); store != nil {
		opts = append(opts, core.WithReconcileReportSink(store))
	}
	return opts, nil
}
