package core

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return cloneFields(l.values), nil
}

// fakeTransport records every request and answers through handle.
type fakeTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	handle   func(req TransportRequest) (TransportResponse, error)
}

func (t *fakeTransport) Kind() string { return "fake" }

func (t *fakeTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	handle := t.handle
	t.mu.Unlock()
	if handle == nil {
		return TransportResponse{StatusCode: http.StatusOK}, nil
	}
	return handle(req)
}

func (t *fakeTransport) sent() []TransportRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TransportRequest(nil), t.requests...)
}

// fakeAdapter speaks a toy protocol: a 2xx body "ok:<id>" is a successful
// mint, anything else is a semantic failure.
type fakeAdapter struct {
	kind       BackendKind
	mintInputs []MintInput
}

func (a *fakeAdapter) Kind() BackendKind { return a.kind }

func (a *fakeAdapter) BuildMintRequest(in MintInput) (TransportRequest, error) {
	a.mintInputs = append(a.mintInputs, in)
	lines := make([]string, 0, len(in.Fields))
	for _, field := range in.Fields {
		lines = append(lines, field.Key+"="+field.Value)
	}
	return TransportRequest{
		Method: http.MethodPost,
		URL:    "https://pid.example/mint/" + in.Object.StableID(),
		Body:   []byte(strings.Join(lines, "\n")),
	}, nil
}

func (a *fakeAdapter) ParseMintResponse(_ BackendConfig, res TransportResponse) (MintOutcome, error) {
	if res.StatusCode >= 300 {
		return MintOutcome{}, TransportFailure(nil, fmt.Sprintf("fake: status %d", res.StatusCode), nil)
	}
	body := string(res.Body)
	if !strings.HasPrefix(body, "ok:") {
		return MintOutcome{}, SemanticFailure("fake: missing success marker", nil)
	}
	id := strings.TrimPrefix(body, "ok:")
	return MintOutcome{Identifier: id, Value: "https://resolver.example/id/" + id}, nil
}

func (a *fakeAdapter) BuildDeleteRequest(_ BackendConfig, stored string) (TransportRequest, error) {
	return TransportRequest{Method: http.MethodDelete, URL: stored}, nil
}

func (a *fakeAdapter) ParseDeleteResponse(_ BackendConfig, res TransportResponse) error {
	if res.StatusCode >= 300 {
		return SemanticFailure("fake: delete rejected", nil)
	}
	return nil
}

func (a *fakeAdapter) ExpectedLocation(in MintInput) (string, error) {
	if target, ok := in.Fields.Get(EZIDTargetKey); ok {
		return target, nil
	}
	return in.Object.AbsoluteCanonicalURL(), nil
}

// fakeUpdatingAdapter locates the URL value from a body of the form
// "index:<n>"; an empty body means no URL value exists.
type fakeUpdatingAdapter struct {
	fakeAdapter
	updates []string
}

func (a *fakeUpdatingAdapter) BuildLocateRequest(_ BackendConfig, locator string) (TransportRequest, error) {
	return TransportRequest{Method: http.MethodGet, URL: "https://pid.example/handles/" + locator}, nil
}

func (a *fakeUpdatingAdapter) ParseLocateResponse(_ BackendConfig, res TransportResponse) (int, error) {
	body := strings.TrimSpace(string(res.Body))
	if !strings.HasPrefix(body, "index:") {
		return 0, PreconditionFailure(ReasonNoURLValueToUpdate, "fake: no url value", nil)
	}
	return strconv.Atoi(strings.TrimPrefix(body, "index:"))
}

func (a *fakeUpdatingAdapter) BuildUpdateRequest(_ BackendConfig, locator string, index int, location string) (TransportRequest, error) {
	a.updates = append(a.updates, fmt.Sprintf("%s#%d=%s", locator, index, location))
	return TransportRequest{Method: http.MethodPut, URL: "https://pid.example/handles/" + locator}, nil
}

func (a *fakeUpdatingAdapter) ParseUpdateResponse(_ BackendConfig, res TransportResponse) error {
	if res.StatusCode >= 300 {
		return SemanticFailure("fake: update rejected", nil)
	}
	return nil
}

const (
	testConfigID  = "article_ark"
	testEntity    = "node"
	testBundle    = "article"
	testField     = "field_ark"
	testBackendID = "ezid_test"
	testProfileID = "dc"
)

func newTestConfigSource() *MemoryConfigSource {
	return NewMemoryConfigSource().
		PutConfig(IdentifierConfig{
			ID:          testConfigID,
			EntityType:  testEntity,
			Bundle:      testBundle,
			TargetField: testField,
			BackendRef:  testBackendID,
			ProfileRef:  testProfileID,
		}).
		PutBackend(EZIDBackend{
			ID:       testBackendID,
			Host:     "https://ezid.example",
			Username: "apitest",
			Password: "secret",
			Shoulder: "ark:/99999/fk4",
		}).
		PutProfile(DataProfile{
			ID:      testProfileID,
			Variant: ProfileVariantERC,
			Mappings: []FieldMapping{
				{OutputKey: "what", SourceField: "title"},
				{OutputKey: "who", SourceField: "author"},
			},
		}).
		AddField(testEntity, testBundle, testField)
}

func newTestObject(id string, values map[string]string) *MemoryObject {
	return NewMemoryObject(testEntity, testBundle, id, "https://repo.example/node/"+id, values)
}

type testHarness struct {
	service   *Service
	source    *MemoryConfigSource
	transport *fakeTransport
	adapter   *fakeAdapter
	logger    *captureLogger
	metrics   *captureMetricsRecorder
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		source:    newTestConfigSource(),
		transport: &fakeTransport{},
		adapter:   &fakeAdapter{kind: BackendKindEZID},
		logger:    newCaptureLogger(),
		metrics:   &captureMetricsRecorder{},
	}
	base := []Option{
		WithConfigSource(h.source),
		WithFieldSchema(h.source),
		WithTransport(h.transport),
		WithProtocolAdapters(h.adapter),
		WithLogger(h.logger),
		WithLoggerProvider(stubLoggerProvider{logger: h.logger}),
		WithMetricsRecorder(h.metrics),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.service = svc
	return h
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level == level && item.msg == message && item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
