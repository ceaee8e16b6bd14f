package core

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	resolver        *ConfigResolver
	extractor       FieldExtractor
	transport       TransportAdapter
	adapters        map[BackendKind]ProtocolAdapter
	objectSource    ObjectSource
	triggers        TriggerEvaluator
	cursorStore     ReconcileCursorStore
	reportSink      ReconcileReportSink
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	Resolver        *ConfigResolver
	Transport       TransportAdapter
	ObjectSource    ObjectSource
	Triggers        TriggerEvaluator
	CursorStore     ReconcileCursorStore
	ReportSink      ReconcileReportSink
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("pids", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("pids"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = pidErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.configSource == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: config source is required"))
	}
	if builder.transport == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: transport adapter is required"))
	}

	adapters := make(map[BackendKind]ProtocolAdapter, len(builder.adapters))
	for _, adapter := range builder.adapters {
		if adapter == nil {
			continue
		}
		kind := BackendKind(strings.TrimSpace(strings.ToLower(string(adapter.Kind()))))
		switch kind {
		case BackendKindEZID, BackendKindHandle:
			adapters[kind] = adapter
		default:
			return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: unsupported protocol adapter kind %q", adapter.Kind()))
		}
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		resolver:        NewConfigResolver(builder.configSource, builder.fieldSchema),
		extractor:       FieldExtractor{},
		transport:       builder.transport,
		adapters:        adapters,
		objectSource:    builder.objectSource,
		triggers:        builder.triggers,
		cursorStore:     builder.cursorStore,
		reportSink:      builder.reportSink,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		Resolver:        s.resolver,
		Transport:       s.transport,
		ObjectSource:    s.objectSource,
		Triggers:        s.triggers,
		CursorStore:     s.cursorStore,
		ReportSink:      s.reportSink,
	}
}

func (s *Service) adapterFor(backend BackendConfig, metadata map[string]any) (ProtocolAdapter, error) {
	if backend == nil {
		return nil, ConfigIncompleteError("core: service backend is missing", metadata)
	}
	adapter, ok := s.adapters[backend.Kind()]
	if !ok || adapter == nil {
		return nil, ConfigIncompleteError(
			fmt.Sprintf("core: no protocol adapter configured for backend kind %q", backend.Kind()),
			metadata,
		)
	}
	return adapter, nil
}

// send applies the configured transport limits and executes req.
func (s *Service) send(ctx context.Context, req TransportRequest) (TransportResponse, error) {
	if req.Timeout <= 0 {
		req.Timeout = s.config.Transport.Timeout
	}
	if req.MaxResponseBodyBytes <= 0 {
		req.MaxResponseBodyBytes = s.config.Transport.MaxResponseBodyBytes
	}
	return s.transport.Do(ctx, req)
}
