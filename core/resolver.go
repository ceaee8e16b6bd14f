package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConfigResolver turns an identifier configuration id into the triple the
// engine works with. Nothing is cached: every call reads the source again.
type ConfigResolver struct {
	source ConfigSource
	schema FieldSchema
}

func NewConfigResolver(source ConfigSource, schema FieldSchema) *ConfigResolver {
	return &ConfigResolver{source: source, schema: schema}
}

func (r *ConfigResolver) Resolve(ctx context.Context, configID string) (ResolvedConfig, error) {
	configID = strings.TrimSpace(configID)
	metadata := map[string]any{"config_id": configID}
	if r == nil || r.source == nil {
		return ResolvedConfig{}, InternalError(nil, "core: config resolver has no source", metadata)
	}
	if configID == "" {
		return ResolvedConfig{}, ConfigIncompleteError("core: identifier config id is required", metadata)
	}

	cfg, err := r.source.GetIdentifierConfig(ctx, configID)
	if err != nil {
		return ResolvedConfig{}, lookupError(err, ErrConfigNotFound, "core: load identifier config", metadata)
	}
	if err := cfg.Validate(); err != nil {
		return ResolvedConfig{}, WrapConfigIncomplete(err, err.Error(), metadata)
	}
	if strings.TrimSpace(cfg.BackendRef) == "" {
		return ResolvedConfig{}, ConfigIncompleteError(
			fmt.Sprintf("core: identifier config %q has no service backend", configID),
			metadata,
		)
	}
	if strings.TrimSpace(cfg.ProfileRef) == "" {
		return ResolvedConfig{}, ConfigIncompleteError(
			fmt.Sprintf("core: identifier config %q has no data profile", configID),
			metadata,
		)
	}
	metadata["backend_ref"] = cfg.BackendRef
	metadata["profile_ref"] = cfg.ProfileRef

	if r.schema != nil && !r.schema.HasField(cfg.EntityType, cfg.Bundle, cfg.TargetField) {
		return ResolvedConfig{}, ConfigIncompleteError(
			fmt.Sprintf("core: target field %q does not exist on %s/%s", cfg.TargetField, cfg.EntityType, cfg.Bundle),
			metadata,
		)
	}

	backend, err := r.source.GetBackend(ctx, cfg.BackendRef)
	if err != nil {
		return ResolvedConfig{}, lookupError(err, ErrBackendNotFound, "core: load service backend", metadata)
	}
	if backend == nil {
		return ResolvedConfig{}, ConfigIncompleteError("core: service backend is missing", metadata)
	}
	if err := backend.Validate(); err != nil {
		return ResolvedConfig{}, WrapConfigIncomplete(err, err.Error(), metadata)
	}

	profile, err := r.source.GetProfile(ctx, cfg.ProfileRef)
	if err != nil {
		return ResolvedConfig{}, lookupError(err, ErrProfileNotFound, "core: load data profile", metadata)
	}
	if err := profile.Validate(); err != nil {
		return ResolvedConfig{}, WrapConfigIncomplete(err, err.Error(), metadata)
	}

	return ResolvedConfig{
		Config:  cfg,
		Backend: backend,
		Profile: profile,
	}, nil
}

func lookupError(err error, notFound error, message string, metadata map[string]any) error {
	if errors.Is(err, notFound) {
		return WrapConfigIncomplete(err, message+": "+err.Error(), metadata)
	}
	if IsConfigIncomplete(err) {
		return err
	}
	return InternalError(err, message, metadata)
}
