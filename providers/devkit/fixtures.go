package devkit

import (
	"github.com/goliatone/go-pids/core"
)

const (
	FixtureEntityType = "node"
	FixtureBundle     = "article"
	FixtureField      = "field_pid"
)

func NewEZIDBackendFixture(host string) core.EZIDBackend {
	if host == "" {
		host = "https://ezid.example.test"
	}
	return core.EZIDBackend{
		ID:       "ezid_fixture",
		Host:     host,
		Username: "apitest",
		Password: "apitest-secret",
		Shoulder: "ark:/99999/fk4",
	}
}

func NewHandleBackendFixture(host string) core.HandleBackend {
	if host == "" {
		host = "https://handle.example.test/api/handles"
	}
	return core.HandleBackend{
		ID:       "handle_fixture",
		Host:     host,
		Username: "admin",
		Password: "handle-secret",
		Prefix:   "20.500.12345",
	}
}

func NewDataProfileFixture(variant core.ProfileVariant) core.DataProfile {
	return core.DataProfile{
		ID:      "profile_fixture",
		Variant: variant,
		Mappings: []core.FieldMapping{
			{OutputKey: "who", SourceField: "author"},
			{OutputKey: "what", SourceField: "title"},
			{OutputKey: "when", SourceField: "created"},
		},
	}
}

// NewObjectFixture returns an article carrying the fields the profile fixture
// reads.
func NewObjectFixture(id string) *core.MemoryObject {
	return core.NewMemoryObject(FixtureEntityType, FixtureBundle, id, "https://repo.example.test/node/"+id, map[string]string{
		"author":  "Doe, Jane",
		"title":   "Persistent identifiers in practice",
		"created": "2024-05-01",
	})
}

// NewConfigSourceFixture binds FixtureField on the article bundle to backend
// through the profile fixture.
func NewConfigSourceFixture(configID string, backend core.BackendConfig, profile core.DataProfile) *core.MemoryConfigSource {
	return core.NewMemoryConfigSource().
		PutConfig(core.IdentifierConfig{
			ID:          configID,
			EntityType:  FixtureEntityType,
			Bundle:      FixtureBundle,
			TargetField: FixtureField,
			BackendRef:  backend.BackendID(),
			ProfileRef:  profile.ID,
		}).
		PutBackend(backend).
		PutProfile(profile).
		AddField(FixtureEntityType, FixtureBundle, FixtureField)
}
