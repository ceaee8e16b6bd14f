package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	configSource    ConfigSource
	fieldSchema     FieldSchema
	transport       TransportAdapter
	adapters        []ProtocolAdapter
	objectSource    ObjectSource
	triggers        TriggerEvaluator
	cursorStore     ReconcileCursorStore
	reportSink      ReconcileReportSink
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithConfigSource(source ConfigSource) Option {
	return func(b *serviceBuilder) {
		b.configSource = source
	}
}

func WithFieldSchema(schema FieldSchema) Option {
	return func(b *serviceBuilder) {
		b.fieldSchema = schema
	}
}

func WithTransport(transport TransportAdapter) Option {
	return func(b *serviceBuilder) {
		b.transport = transport
	}
}

// WithProtocolAdapters sets the adapter for each backend kind. A later adapter
// for the same kind replaces an earlier one.
func WithProtocolAdapters(adapters ...ProtocolAdapter) Option {
	return func(b *serviceBuilder) {
		b.adapters = append(b.adapters, adapters...)
	}
}

func WithObjectSource(source ObjectSource) Option {
	return func(b *serviceBuilder) {
		b.objectSource = source
	}
}

func WithTriggerEvaluator(evaluator TriggerEvaluator) Option {
	return func(b *serviceBuilder) {
		b.triggers = evaluator
	}
}

func WithReconcileCursorStore(store ReconcileCursorStore) Option {
	return func(b *serviceBuilder) {
		b.cursorStore = store
	}
}

func WithReconcileReportSink(sink ReconcileReportSink) Option {
	return func(b *serviceBuilder) {
		b.reportSink = sink
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("pids", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     pidErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw config map, e.g. one decoded from
// a file by the host application.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap drops zero values unless includeZero is set so an empty
// runtime config does not mask loaded values.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.ServiceName != "" {
		layer["service_name"] = cfg.ServiceName
	}

	transport := map[string]any{}
	if includeZero || cfg.Transport.Timeout > 0 {
		transport["timeout"] = cfg.Transport.Timeout
	}
	if includeZero || cfg.Transport.MaxResponseBodyBytes > 0 {
		transport["max_response_body_bytes"] = cfg.Transport.MaxResponseBodyBytes
	}
	if len(transport) > 0 {
		layer["transport"] = transport
	}

	if includeZero || cfg.Reconcile.PageSize > 0 {
		layer["reconcile"] = map[string]any{
			"page_size": cfg.Reconcile.PageSize,
		}
	}
	return layer
}
