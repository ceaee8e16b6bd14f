package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type failingConfigSource struct {
	*MemoryConfigSource
	err error
}

func (s failingConfigSource) GetIdentifierConfig(context.Context, string) (IdentifierConfig, error) {
	return IdentifierConfig{}, s.err
}

func TestConfigResolver_ResolvesTriple(t *testing.T) {
	source := newTestConfigSource()
	resolved, err := NewConfigResolver(source, source).Resolve(context.Background(), testConfigID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Backend.Kind() != BackendKindEZID || resolved.Profile.ID != testProfileID {
		t.Fatalf("unexpected resolution %#v", resolved)
	}
}

func TestConfigResolver_FailsWhenReferencesAreMissing(t *testing.T) {
	cases := map[string]IdentifierConfig{
		"no backend": {ID: testConfigID, EntityType: testEntity, Bundle: testBundle, TargetField: testField, ProfileRef: testProfileID},
		"no profile": {ID: testConfigID, EntityType: testEntity, Bundle: testBundle, TargetField: testField, BackendRef: testBackendID},
		"dangling backend": {
			ID: testConfigID, EntityType: testEntity, Bundle: testBundle, TargetField: testField,
			BackendRef: "missing", ProfileRef: testProfileID,
		},
		"dangling profile": {
			ID: testConfigID, EntityType: testEntity, Bundle: testBundle, TargetField: testField,
			BackendRef: testBackendID, ProfileRef: "missing",
		},
		"unknown field": {
			ID: testConfigID, EntityType: testEntity, Bundle: testBundle, TargetField: "field_nope",
			BackendRef: testBackendID, ProfileRef: testProfileID,
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			source := newTestConfigSource().PutConfig(cfg)
			_, err := NewConfigResolver(source, source).Resolve(context.Background(), testConfigID)
			if !IsConfigIncomplete(err) {
				t.Fatalf("expected config incomplete, got %v", err)
			}
		})
	}
}

func TestConfigResolver_UnknownConfigIsIncomplete(t *testing.T) {
	source := newTestConfigSource()
	_, err := NewConfigResolver(source, nil).Resolve(context.Background(), "nope")
	if !IsConfigIncomplete(err) {
		t.Fatalf("expected config incomplete, got %v", err)
	}
}

func TestConfigResolver_SourceFailureIsInternal(t *testing.T) {
	source := failingConfigSource{MemoryConfigSource: newTestConfigSource(), err: errors.New("connection reset")}
	_, err := NewConfigResolver(source, nil).Resolve(context.Background(), testConfigID)
	if err == nil || IsConfigIncomplete(err) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestConfigResolver_RejectsInvalidBackend(t *testing.T) {
	source := newTestConfigSource().PutBackend(EZIDBackend{ID: testBackendID, Host: "https://ezid.example", Username: "u"})
	_, err := NewConfigResolver(source, nil).Resolve(context.Background(), testConfigID)
	if !IsConfigIncomplete(err) {
		t.Fatalf("expected missing password to be config incomplete, got %v", err)
	}
}

func TestConfigResolver_RejectsDuplicateOutputKeys(t *testing.T) {
	source := newTestConfigSource().PutProfile(DataProfile{
		ID:      testProfileID,
		Variant: ProfileVariantERC,
		Mappings: []FieldMapping{
			{OutputKey: "who", SourceField: "author"},
			{OutputKey: "what", SourceField: "title"},
			{OutputKey: " who ", SourceField: "editor"},
		},
	})
	_, err := NewConfigResolver(source, nil).Resolve(context.Background(), testConfigID)
	if !IsConfigIncomplete(err) {
		t.Fatalf("expected duplicate output key to be config incomplete, got %v", err)
	}
	if !strings.Contains(err.Error(), `output key "who" more than once`) {
		t.Fatalf("expected the duplicate key to be named, got %v", err)
	}
}
