package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-pids/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const configCacheKeyPrefix = "go-pids::config::v1"

const (
	configCacheKindIdentifier = "identifier"
	configCacheKindBackend    = "backend"
	configCacheKindProfile    = "profile"
)

// CachedConfigSource is a read-through cache over a ConfigStore. Writes go to
// the base store first and then drop the affected key.
type CachedConfigSource struct {
	base  ConfigStore
	cache repositorycache.CacheService
}

func NewCachedConfigSource(base ConfigStore, cacheService repositorycache.CacheService) (*CachedConfigSource, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base config store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: config cache service is required")
	}
	return &CachedConfigSource{base: base, cache: cacheService}, nil
}

// ConfigCacheKey returns go-pids::config::v1::<kind>::<id> with the id URL-path
// escaped.
func ConfigCacheKey(kind string, id string) (string, error) {
	kind = strings.TrimSpace(kind)
	id = strings.TrimSpace(id)
	if kind == "" || id == "" {
		return "", fmt.Errorf("sqlstore: config cache key requires kind and id")
	}
	return strings.Join([]string{configCacheKeyPrefix, kind, url.PathEscape(id)}, "::"), nil
}

func (s *CachedConfigSource) GetIdentifierConfig(ctx context.Context, id string) (core.IdentifierConfig, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.IdentifierConfig{}, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	cacheKey, err := ConfigCacheKey(configCacheKindIdentifier, id)
	if err != nil {
		return core.IdentifierConfig{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.IdentifierConfig, error) {
		return s.base.GetIdentifierConfig(ctx, id)
	})
}

func (s *CachedConfigSource) GetBackend(ctx context.Context, id string) (core.BackendConfig, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	cacheKey, err := ConfigCacheKey(configCacheKindBackend, id)
	if err != nil {
		return nil, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.BackendConfig, error) {
		return s.base.GetBackend(ctx, id)
	})
}

func (s *CachedConfigSource) GetProfile(ctx context.Context, id string) (core.DataProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DataProfile{}, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	cacheKey, err := ConfigCacheKey(configCacheKindProfile, id)
	if err != nil {
		return core.DataProfile{}, err
	}
	profile, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.DataProfile, error) {
		return s.base.GetProfile(ctx, id)
	})
	if err != nil {
		return core.DataProfile{}, err
	}
	profile.Mappings = append([]core.FieldMapping(nil), profile.Mappings...)
	return profile, nil
}

func (s *CachedConfigSource) SaveIdentifierConfig(ctx context.Context, cfg core.IdentifierConfig) (core.IdentifierConfig, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.IdentifierConfig{}, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	saved, err := s.base.SaveIdentifierConfig(ctx, cfg)
	if err != nil {
		return core.IdentifierConfig{}, err
	}
	if err := s.invalidate(ctx, configCacheKindIdentifier, saved.ID); err != nil {
		return core.IdentifierConfig{}, err
	}
	return saved, nil
}

func (s *CachedConfigSource) SaveBackend(ctx context.Context, backend core.BackendConfig) (core.BackendConfig, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	saved, err := s.base.SaveBackend(ctx, backend)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, configCacheKindBackend, saved.BackendID()); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *CachedConfigSource) SaveProfile(ctx context.Context, profile core.DataProfile) (core.DataProfile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DataProfile{}, fmt.Errorf("sqlstore: cached config source is not configured")
	}
	saved, err := s.base.SaveProfile(ctx, profile)
	if err != nil {
		return core.DataProfile{}, err
	}
	if err := s.invalidate(ctx, configCacheKindProfile, saved.ID); err != nil {
		return core.DataProfile{}, err
	}
	return saved, nil
}

func (s *CachedConfigSource) DeleteIdentifierConfig(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached config source is not configured")
	}
	if err := s.base.DeleteIdentifierConfig(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, configCacheKindIdentifier, id)
}

func (s *CachedConfigSource) invalidate(ctx context.Context, kind string, id string) error {
	cacheKey, err := ConfigCacheKey(kind, id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
