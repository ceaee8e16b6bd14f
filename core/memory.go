package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryObject is a TargetObject backed by a field map.
type MemoryObject struct {
	Type         string
	BundleName   string
	ID           string
	CanonicalURL string
	SaveErr      error

	mu     sync.Mutex
	values map[string]string
	saves  int
}

func NewMemoryObject(entityType, bundle, id, canonicalURL string, values map[string]string) *MemoryObject {
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return &MemoryObject{
		Type:         entityType,
		BundleName:   bundle,
		ID:           id,
		CanonicalURL: canonicalURL,
		values:       copied,
	}
}

func (o *MemoryObject) EntityType() string { return o.Type }

func (o *MemoryObject) Bundle() string { return o.BundleName }

func (o *MemoryObject) StableID() string { return o.ID }

func (o *MemoryObject) AbsoluteCanonicalURL() string { return o.CanonicalURL }

func (o *MemoryObject) Get(field string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.values[field]
}

func (o *MemoryObject) Set(field string, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.values == nil {
		o.values = map[string]string{}
	}
	o.values[field] = value
}

func (o *MemoryObject) Save(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.SaveErr != nil {
		return o.SaveErr
	}
	o.saves++
	return nil
}

// Saves counts successful Save calls.
func (o *MemoryObject) Saves() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saves
}

// MemoryObjectSource keeps objects per entity type and serves them in stable
// id order.
type MemoryObjectSource struct {
	mu      sync.RWMutex
	objects map[string]map[string]TargetObject
	// LoadErr, when set, fails Load for the given ids.
	LoadErr map[string]error
}

func NewMemoryObjectSource(objects ...TargetObject) *MemoryObjectSource {
	source := &MemoryObjectSource{objects: map[string]map[string]TargetObject{}}
	for _, obj := range objects {
		source.Put(obj)
	}
	return source
}

func (s *MemoryObjectSource) Put(obj TargetObject) {
	if isNilObject(obj) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string]map[string]TargetObject{}
	}
	byID, ok := s.objects[obj.EntityType()]
	if !ok {
		byID = map[string]TargetObject{}
		s.objects[obj.EntityType()] = byID
	}
	byID[obj.StableID()] = obj
}

func (s *MemoryObjectSource) CountPopulated(_ context.Context, q PopulatedQuery) (int, error) {
	ids := s.populated(q)
	return len(ids), nil
}

func (s *MemoryObjectSource) ListPopulatedIDs(_ context.Context, q PopulatedQuery) ([]string, error) {
	ids := s.populated(q)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if q.AfterID != "" && id <= q.AfterID {
			continue
		}
		out = append(out, id)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryObjectSource) Load(_ context.Context, entityType string, id string) (TargetObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.LoadErr[id]; err != nil {
		return nil, err
	}
	obj, ok := s.objects[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, entityType, id)
	}
	return obj, nil
}

func (s *MemoryObjectSource) populated(q PopulatedQuery) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for id, obj := range s.objects[q.EntityType] {
		if q.Bundle != "" && obj.Bundle() != q.Bundle {
			continue
		}
		if strings.TrimSpace(obj.Get(q.Field)) == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MemoryConfigSource is a ConfigSource over plain maps. It also answers
// FieldSchema lookups from the fields registered with AddField.
type MemoryConfigSource struct {
	mu       sync.RWMutex
	configs  map[string]IdentifierConfig
	backends map[string]BackendConfig
	profiles map[string]DataProfile
	fields   map[string]struct{}
}

func NewMemoryConfigSource() *MemoryConfigSource {
	return &MemoryConfigSource{
		configs:  map[string]IdentifierConfig{},
		backends: map[string]BackendConfig{},
		profiles: map[string]DataProfile{},
		fields:   map[string]struct{}{},
	}
}

func (s *MemoryConfigSource) PutConfig(cfg IdentifierConfig) *MemoryConfigSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg
	return s
}

func (s *MemoryConfigSource) PutBackend(backend BackendConfig) *MemoryConfigSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[backend.BackendID()] = backend
	return s
}

func (s *MemoryConfigSource) PutProfile(profile DataProfile) *MemoryConfigSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return s
}

func (s *MemoryConfigSource) AddField(entityType, bundle, field string) *MemoryConfigSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[fieldKey(entityType, bundle, field)] = struct{}{}
	return s
}

func (s *MemoryConfigSource) GetIdentifierConfig(_ context.Context, id string) (IdentifierConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return IdentifierConfig{}, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *MemoryConfigSource) GetBackend(_ context.Context, id string) (BackendConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backend, ok := s.backends[id]
	if !ok {
		return nil, ErrBackendNotFound
	}
	return backend, nil
}

func (s *MemoryConfigSource) GetProfile(_ context.Context, id string) (DataProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return DataProfile{}, ErrProfileNotFound
	}
	return profile, nil
}

func (s *MemoryConfigSource) HasField(entityType, bundle, field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fields[fieldKey(entityType, bundle, field)]
	return ok
}

func fieldKey(entityType, bundle, field string) string {
	return strings.TrimSpace(entityType) + "\x00" + strings.TrimSpace(bundle) + "\x00" + strings.TrimSpace(field)
}
