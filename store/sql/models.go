package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-pids/core"
	"github.com/uptrace/bun"
)

type identifierConfigRecord struct {
	bun.BaseModel `bun:"table:pid_identifier_configs,alias:pic"`

	ID          string    `bun:"id,pk"`
	EntityType  string    `bun:"entity_type,notnull"`
	Bundle      string    `bun:"bundle,notnull"`
	TargetField string    `bun:"target_field,notnull"`
	BackendRef  string    `bun:"backend_ref,notnull"`
	ProfileRef  string    `bun:"profile_ref,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type serviceBackendRecord struct {
	bun.BaseModel `bun:"table:pid_service_backends,alias:psb"`

	ID          string    `bun:"id,pk"`
	Kind        string    `bun:"kind,notnull"`
	Host        string    `bun:"host,notnull"`
	Username    string    `bun:"username,notnull"`
	Password    string    `bun:"password,notnull"`
	Shoulder    string    `bun:"shoulder,notnull"`
	Resolver    string    `bun:"resolver,notnull"`
	Prefix      string    `bun:"prefix,notnull"`
	SuffixField string    `bun:"suffix_field,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type fieldMappingRecord struct {
	OutputKey   string `json:"output_key"`
	SourceField string `json:"source_field"`
}

type dataProfileRecord struct {
	bun.BaseModel `bun:"table:pid_data_profiles,alias:pdp"`

	ID        string               `bun:"id,pk"`
	Variant   string               `bun:"variant,notnull"`
	Mappings  []fieldMappingRecord `bun:"mappings,type:jsonb,notnull"`
	CreatedAt time.Time            `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time            `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type reconcileCursorRecord struct {
	bun.BaseModel `bun:"table:pid_reconcile_cursors,alias:prc"`

	ID              string     `bun:"id,pk"`
	ConfigID        string     `bun:"config_id,notnull"`
	LastProcessedID string     `bun:"last_processed_id,notnull"`
	Total           int        `bun:"total,notnull"`
	Completed       int        `bun:"completed,notnull"`
	Status          string     `bun:"status,notnull"`
	StartedAt       *time.Time `bun:"started_at,nullzero"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type reconcileResultRecord struct {
	bun.BaseModel `bun:"table:pid_reconcile_results,alias:prr"`

	ID        string    `bun:"id,pk"`
	ConfigID  string    `bun:"config_id,notnull"`
	ObjectID  string    `bun:"object_id,notnull"`
	Status    string    `bun:"status,notnull"`
	Stored    string    `bun:"stored,notnull"`
	Expected  string    `bun:"expected,notnull"`
	Actual    string    `bun:"actual,notnull"`
	Error     string    `bun:"error,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

const (
	cursorStatusPending  = "pending"
	cursorStatusActive   = "active"
	cursorStatusFinished = "finished"
)

func newIdentifierConfigRecord(cfg core.IdentifierConfig, now time.Time) *identifierConfigRecord {
	return &identifierConfigRecord{
		ID:          strings.TrimSpace(cfg.ID),
		EntityType:  strings.TrimSpace(cfg.EntityType),
		Bundle:      strings.TrimSpace(cfg.Bundle),
		TargetField: strings.TrimSpace(cfg.TargetField),
		BackendRef:  strings.TrimSpace(cfg.BackendRef),
		ProfileRef:  strings.TrimSpace(cfg.ProfileRef),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *identifierConfigRecord) toDomain() core.IdentifierConfig {
	if r == nil {
		return core.IdentifierConfig{}
	}
	return core.IdentifierConfig{
		ID:          r.ID,
		EntityType:  r.EntityType,
		Bundle:      r.Bundle,
		TargetField: r.TargetField,
		BackendRef:  r.BackendRef,
		ProfileRef:  r.ProfileRef,
	}
}

func newServiceBackendRecord(backend core.BackendConfig, now time.Time) *serviceBackendRecord {
	record := &serviceBackendRecord{
		ID:        strings.TrimSpace(backend.BackendID()),
		Kind:      string(backend.Kind()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch typed := backend.(type) {
	case core.EZIDBackend:
		record.Host = strings.TrimSpace(typed.Host)
		record.Username = strings.TrimSpace(typed.Username)
		record.Password = typed.Password
		record.Shoulder = strings.TrimSpace(typed.Shoulder)
		record.Resolver = strings.TrimSpace(typed.Resolver)
	case core.HandleBackend:
		record.Host = strings.TrimSpace(typed.Host)
		record.Username = strings.TrimSpace(typed.Username)
		record.Password = typed.Password
		record.Prefix = strings.TrimSpace(typed.Prefix)
		record.SuffixField = strings.TrimSpace(typed.SuffixField)
	}
	return record
}

func (r *serviceBackendRecord) toDomain() (core.BackendConfig, error) {
	if r == nil {
		return nil, core.ErrBackendNotFound
	}
	switch core.BackendKind(r.Kind) {
	case core.BackendKindEZID:
		return core.EZIDBackend{
			ID:       r.ID,
			Host:     r.Host,
			Username: r.Username,
			Password: r.Password,
			Shoulder: r.Shoulder,
			Resolver: r.Resolver,
		}, nil
	case core.BackendKindHandle:
		return core.HandleBackend{
			ID:          r.ID,
			Host:        r.Host,
			Username:    r.Username,
			Password:    r.Password,
			Prefix:      r.Prefix,
			SuffixField: r.SuffixField,
		}, nil
	default:
		return nil, core.ConfigIncompleteError("unknown backend kind", map[string]any{
			"backend_id":   r.ID,
			"backend_kind": r.Kind,
		})
	}
}

func newDataProfileRecord(profile core.DataProfile, now time.Time) *dataProfileRecord {
	variant := profile.Variant
	if variant == "" {
		variant = core.ProfileVariantPlain
	}
	mappings := make([]fieldMappingRecord, 0, len(profile.Mappings))
	for _, mapping := range profile.Mappings {
		mappings = append(mappings, fieldMappingRecord{
			OutputKey:   strings.TrimSpace(mapping.OutputKey),
			SourceField: strings.TrimSpace(mapping.SourceField),
		})
	}
	return &dataProfileRecord{
		ID:        strings.TrimSpace(profile.ID),
		Variant:   string(variant),
		Mappings:  mappings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *dataProfileRecord) toDomain() core.DataProfile {
	if r == nil {
		return core.DataProfile{}
	}
	mappings := make([]core.FieldMapping, 0, len(r.Mappings))
	for _, mapping := range r.Mappings {
		mappings = append(mappings, core.FieldMapping{
			OutputKey:   mapping.OutputKey,
			SourceField: mapping.SourceField,
		})
	}
	return core.DataProfile{
		ID:       r.ID,
		Variant:  core.ProfileVariant(r.Variant),
		Mappings: mappings,
	}
}

func cursorStatus(cursor core.ReconcileCursor) string {
	switch {
	case cursor.Finished:
		return cursorStatusFinished
	case cursor.Started:
		return cursorStatusActive
	default:
		return cursorStatusPending
	}
}

func (r *reconcileCursorRecord) apply(cursor core.ReconcileCursor, now time.Time) {
	r.LastProcessedID = strings.TrimSpace(cursor.LastProcessedID)
	r.Total = cursor.Total
	r.Completed = cursor.Completed
	r.Status = cursorStatus(cursor)
	if cursor.StartedAt.IsZero() {
		r.StartedAt = nil
	} else {
		startedAt := cursor.StartedAt.UTC()
		r.StartedAt = &startedAt
	}
	r.UpdatedAt = now
}

func (r *reconcileCursorRecord) toDomain() core.ReconcileCursor {
	if r == nil {
		return core.ReconcileCursor{}
	}
	cursor := core.ReconcileCursor{
		LastProcessedID: r.LastProcessedID,
		Total:           r.Total,
		Completed:       r.Completed,
		Started:         r.Status != cursorStatusPending,
		Finished:        r.Status == cursorStatusFinished,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.StartedAt != nil {
		cursor.StartedAt = r.StartedAt.UTC()
	}
	return cursor
}

func newReconcileResultRecord(configID string, result core.ReconcileResult, now time.Time) *reconcileResultRecord {
	return &reconcileResultRecord{
		ConfigID:  strings.TrimSpace(configID),
		ObjectID:  strings.TrimSpace(result.ObjectID),
		Status:    string(result.Status),
		Stored:    result.Stored,
		Expected:  result.Expected,
		Actual:    result.Actual,
		Error:     result.Error,
		CreatedAt: now,
	}
}

func (r *reconcileResultRecord) toDomain() core.ReconcileResult {
	if r == nil {
		return core.ReconcileResult{}
	}
	return core.ReconcileResult{
		ObjectID: r.ObjectID,
		Status:   core.ReconcileStatus(r.Status),
		Stored:   r.Stored,
		Expected: r.Expected,
		Actual:   r.Actual,
		Error:    r.Error,
	}
}
