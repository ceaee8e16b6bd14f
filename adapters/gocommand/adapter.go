package gocommand

import (
	"context"
	"fmt"
	"strings"

	pidcommand "github.com/goliatone/go-pids/command"
	"github.com/goliatone/go-pids/core"
	pidquery "github.com/goliatone/go-pids/query"
	sqlstore "github.com/goliatone/go-pids/store/sql"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) register(handler any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered handlers into a go-job queue registry so
// pid commands can run from queued deliveries.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// DispatchWithResult dispatches msg and returns the value its handler stored
// in the result collector. The value is returned alongside a handler error
// when the handler stored one before failing.
func DispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	collector := command.NewResult[R]()
	err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg)
	value, _ := collector.Load()
	return value, err
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.register(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.register(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// PIDService is the service surface routed through the dispatcher.
type PIDService interface {
	pidcommand.MutatingService
	pidcommand.LifecycleService
	pidcommand.ReconcileService
	pidquery.ReconcileReader
}

// PIDHandlers wires pid commands and queries. Reports is optional; without it
// the report list query is not subscribed.
type PIDHandlers struct {
	Service  PIDService
	Resolver pidquery.ConfigResolver
	Reports  pidquery.ReconcileReportReader
}

// HandlersForService builds a handler set from a core service.
func HandlersForService(service *core.Service, reports pidquery.ReconcileReportReader) PIDHandlers {
	handlers := PIDHandlers{Reports: reports}
	if service != nil {
		handlers.Service = service
		if resolver := service.Dependencies().Resolver; resolver != nil {
			handlers.Resolver = resolver
		}
	}
	return handlers
}

type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			s[i].Unsubscribe()
		}
	}
}

// RegisterPIDHandlers registers and subscribes every pid command and query.
// On failure the subscriptions made so far are released.
func RegisterPIDHandlers(adapter *RegistryAdapter, handlers PIDHandlers, runnerOpts ...runner.Option) (Subscriptions, error) {
	if handlers.Service == nil {
		return nil, fmt.Errorf("gocommand: pid service is required")
	}
	if handlers.Resolver == nil {
		return nil, fmt.Errorf("gocommand: config resolver is required")
	}

	var subs Subscriptions
	track := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return track(RegisterAndSubscribe[pidcommand.MintMessage](adapter, pidcommand.NewMintCommand(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribe[pidcommand.DeleteMessage](adapter, pidcommand.NewDeleteCommand(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribe[pidcommand.UpdateMessage](adapter, pidcommand.NewUpdateCommand(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribe[pidcommand.LifecycleEventMessage](adapter, pidcommand.NewLifecycleEventCommand(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribe[pidcommand.AdvanceReconcileMessage](adapter, pidcommand.NewAdvanceReconcileCommand(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribeQuery[pidquery.ReconcilePageMessage, core.ReconcilePageResult](adapter, pidquery.NewReconcilePageQuery(handlers.Service), runnerOpts...))
		},
		func() error {
			return track(RegisterAndSubscribeQuery[pidquery.ResolveConfigMessage, core.ResolvedConfig](adapter, pidquery.NewResolveConfigQuery(handlers.Resolver), runnerOpts...))
		},
	}
	if handlers.Reports != nil {
		steps = append(steps, func() error {
			return track(RegisterAndSubscribeQuery[pidquery.ListReconcileReportMessage, sqlstore.ReconcileReportPage](
				adapter, pidquery.NewListReconcileReportQuery(handlers.Reports), runnerOpts...,
			))
		})
	}

	for _, step := range steps {
		if err := step(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}
