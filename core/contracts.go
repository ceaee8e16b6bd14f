package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type BasicAuth struct {
	Username string
	Password string
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	BasicAuth            *BasicAuth
	SuppressRedirects    bool
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type MintInput struct {
	Backend BackendConfig
	Object  TargetObject
	Fields  Fields
}

type MintOutcome struct {
	// Identifier is the raw value assigned by the service, e.g. an ARK or a
	// prefix/suffix handle.
	Identifier string
	// Value is what gets written to the target field.
	Value string
}

type ProtocolAdapter interface {
	Kind() BackendKind
	BuildMintRequest(in MintInput) (TransportRequest, error)
	ParseMintResponse(backend BackendConfig, res TransportResponse) (MintOutcome, error)
	BuildDeleteRequest(backend BackendConfig, stored string) (TransportRequest, error)
	ParseDeleteResponse(backend BackendConfig, res TransportResponse) error
	// ExpectedLocation replays the mint computation and returns the location
	// the identifier should resolve to.
	ExpectedLocation(in MintInput) (string, error)
}

// UpdatingAdapter is implemented by backends that can repoint an existing
// identifier (locate the URL value, then replace it).
type UpdatingAdapter interface {
	ProtocolAdapter
	BuildLocateRequest(backend BackendConfig, locator string) (TransportRequest, error)
	ParseLocateResponse(backend BackendConfig, res TransportResponse) (int, error)
	BuildUpdateRequest(backend BackendConfig, locator string, index int, location string) (TransportRequest, error)
	ParseUpdateResponse(backend BackendConfig, res TransportResponse) error
}

type ConfigSource interface {
	GetIdentifierConfig(ctx context.Context, id string) (IdentifierConfig, error)
	GetBackend(ctx context.Context, id string) (BackendConfig, error)
	GetProfile(ctx context.Context, id string) (DataProfile, error)
}

type FieldSchema interface {
	HasField(entityType string, bundle string, field string) bool
}

type PopulatedQuery struct {
	EntityType string
	Bundle     string
	Field      string
	AfterID    string
	Limit      int
}

// ObjectSource enumerates objects whose target field is populated, ordered by
// stable id ascending.
type ObjectSource interface {
	CountPopulated(ctx context.Context, q PopulatedQuery) (int, error)
	ListPopulatedIDs(ctx context.Context, q PopulatedQuery) ([]string, error)
	Load(ctx context.Context, entityType string, id string) (TargetObject, error)
}

type ReconcileCursorStore interface {
	Load(ctx context.Context, configID string) (ReconcileCursor, error)
	Save(ctx context.Context, in SaveReconcileCursorInput) (ReconcileCursor, error)
}

type SaveReconcileCursorInput struct {
	ConfigID string
	Cursor   ReconcileCursor
	// ExpectedLastProcessedID guards against two runners advancing the same
	// cursor. Empty skips the check.
	ExpectedLastProcessedID string
}

type ReconcileReportSink interface {
	Record(ctx context.Context, configID string, results []ReconcileResult) error
}
