package pids

import (
	"fmt"

	pidcommand "github.com/goliatone/go-pids/command"
	"github.com/goliatone/go-pids/core"
	pidquery "github.com/goliatone/go-pids/query"
)

type CommandQueryService interface {
	pidcommand.MutatingService
	pidcommand.LifecycleService
	pidcommand.ReconcileService
	pidquery.ReconcileReader
}

type Commands struct {
	Mint             *pidcommand.MintCommand
	Delete           *pidcommand.DeleteCommand
	Update           *pidcommand.UpdateCommand
	LifecycleEvent   *pidcommand.LifecycleEventCommand
	AdvanceReconcile *pidcommand.AdvanceReconcileCommand
}

type Queries struct {
	ReconcilePage       *pidquery.ReconcilePageQuery
	ResolveConfig       *pidquery.ResolveConfigQuery
	ListReconcileReport *pidquery.ListReconcileReportQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	resolver     pidquery.ConfigResolver
	reportReader pidquery.ReconcileReportReader
}

func WithConfigResolver(resolver pidquery.ConfigResolver) FacadeOption {
	return func(options *facadeOptions) {
		options.resolver = resolver
	}
}

func WithReportReader(reader pidquery.ReconcileReportReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reportReader = reader
	}
}

// NewFacade bundles the command and query handlers around service. The config
// resolver and report reader default to the ones a *core.Service was built
// with; a report sink only serves as a reader when it also lists results.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("pids: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	deps, hasDeps := dependenciesOf(service)
	resolver := cfg.resolver
	if resolver == nil && hasDeps && deps.Resolver != nil {
		resolver = deps.Resolver
	}
	reader := cfg.reportReader
	if reader == nil && hasDeps && deps.ReportSink != nil {
		if candidate, ok := deps.ReportSink.(pidquery.ReconcileReportReader); ok {
			reader = candidate
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Mint:             pidcommand.NewMintCommand(service),
		Delete:           pidcommand.NewDeleteCommand(service),
		Update:           pidcommand.NewUpdateCommand(service),
		LifecycleEvent:   pidcommand.NewLifecycleEventCommand(service),
		AdvanceReconcile: pidcommand.NewAdvanceReconcileCommand(service),
	}
	facade.queries = Queries{
		ReconcilePage:       pidquery.NewReconcilePageQuery(service),
		ResolveConfig:       pidquery.NewResolveConfigQuery(resolver),
		ListReconcileReport: pidquery.NewListReconcileReportQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func dependenciesOf(service CommandQueryService) (core.ServiceDependencies, bool) {
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return core.ServiceDependencies{}, false
	}
	if svc, isCore := service.(*core.Service); isCore && svc == nil {
		return core.ServiceDependencies{}, false
	}
	return provider.Dependencies(), true
}
