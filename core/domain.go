package core

import (
	"context"
	"fmt"
	"strings"
)

type BackendKind string

const (
	BackendKindEZID   BackendKind = "ezid"
	BackendKindHandle BackendKind = "handle"
)

// EZIDReservedStatus is sent as _status on every mint. EZID refuses to delete
// identifiers that were not minted as reserved.
const EZIDReservedStatus = "reserved"

const (
	EZIDTargetKey = "_target"
	EZIDStatusKey = "_status"
)

type IdentifierConfig struct {
	ID          string
	EntityType  string
	Bundle      string
	TargetField string
	BackendRef  string
	ProfileRef  string
}

func (c IdentifierConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("core: identifier config id is required")
	}
	if strings.TrimSpace(c.EntityType) == "" || strings.TrimSpace(c.Bundle) == "" {
		return fmt.Errorf("core: identifier config entity type and bundle are required")
	}
	if strings.TrimSpace(c.TargetField) == "" {
		return fmt.Errorf("core: identifier config target field is required")
	}
	return nil
}

// BackendConfig is a closed union: EZIDBackend or HandleBackend.
type BackendConfig interface {
	BackendID() string
	Kind() BackendKind
	Validate() error
	backendConfig()
}

type EZIDBackend struct {
	ID       string
	Host     string
	Username string
	Password string
	Shoulder string
	Resolver string
}

func (b EZIDBackend) BackendID() string { return b.ID }

func (EZIDBackend) Kind() BackendKind { return BackendKindEZID }

func (EZIDBackend) backendConfig() {}

func (b EZIDBackend) Validate() error {
	if err := validateCredentials(BackendKindEZID, b.Host, b.Username, b.Password); err != nil {
		return err
	}
	if strings.TrimSpace(b.Shoulder) == "" {
		return fmt.Errorf("core: ezid shoulder is required")
	}
	return nil
}

// ResolverBase is the base that "/id/<identifier>" is appended to. An unset
// resolver falls back to the host, so the effective resolver is host + "/id".
func (b EZIDBackend) ResolverBase() string {
	if resolver := strings.TrimSpace(b.Resolver); resolver != "" {
		return strings.TrimRight(resolver, "/")
	}
	return strings.TrimRight(strings.TrimSpace(b.Host), "/")
}

type HandleBackend struct {
	ID          string
	Host        string
	Username    string
	Password    string
	Prefix      string
	SuffixField string
}

func (b HandleBackend) BackendID() string { return b.ID }

func (HandleBackend) Kind() BackendKind { return BackendKindHandle }

func (HandleBackend) backendConfig() {}

func (b HandleBackend) Validate() error {
	if err := validateCredentials(BackendKindHandle, b.Host, b.Username, b.Password); err != nil {
		return err
	}
	if strings.TrimSpace(b.Prefix) == "" {
		return fmt.Errorf("core: handle prefix is required")
	}
	return nil
}

// AdminIdentity is the Handle.net admin handle "300:<prefix>/<user>" with
// its colon percent-encoded, so Basic auth does not split the user there.
func (b HandleBackend) AdminIdentity() string {
	return "300%3A" + strings.TrimSpace(b.Prefix) + "/" + strings.TrimSpace(b.Username)
}

func validateCredentials(kind BackendKind, host, username, password string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("core: %s host is required", kind)
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("core: %s username and password are required", kind)
	}
	return nil
}

type ProfileVariant string

const (
	ProfileVariantPlain ProfileVariant = "plain"
	ProfileVariantERC   ProfileVariant = "erc"
)

const ercKeyPrefix = "erc."

type FieldMapping struct {
	OutputKey   string
	SourceField string
}

type DataProfile struct {
	ID       string
	Variant  ProfileVariant
	Mappings []FieldMapping
}

func (p DataProfile) TransformKey(key string) string {
	switch p.Variant {
	case ProfileVariantERC:
		return ercKeyPrefix + key
	default:
		return key
	}
}

func (p DataProfile) Validate() error {
	switch p.Variant {
	case "", ProfileVariantPlain, ProfileVariantERC:
	default:
		return fmt.Errorf("core: unknown data profile variant %q", p.Variant)
	}
	seen := make(map[string]struct{}, len(p.Mappings))
	for _, mapping := range p.Mappings {
		key := strings.TrimSpace(mapping.OutputKey)
		if key == "" {
			return fmt.Errorf("core: data profile %q has a mapping without output key", p.ID)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("core: data profile %q maps output key %q more than once", p.ID, key)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(mapping.SourceField) == "" {
			return fmt.Errorf("core: data profile %q mapping %q has no source field", p.ID, mapping.OutputKey)
		}
	}
	return nil
}

// TargetObject is the fielded repository record a PID belongs to.
type TargetObject interface {
	EntityType() string
	Bundle() string
	StableID() string
	AbsoluteCanonicalURL() string
	Get(field string) string
	Set(field string, value string)
	Save(ctx context.Context) error
}

type Field struct {
	Key   string
	Value string
}

// Fields is an ordered key/value list. Set replaces in place so key order is
// the order of first insertion.
type Fields []Field

func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

func (f Fields) Set(key string, value string) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for _, field := range f {
		keys = append(keys, field.Key)
	}
	return keys
}

func (f Fields) Clone() Fields {
	if len(f) == 0 {
		return Fields{}
	}
	return append(Fields(nil), f...)
}

type ResolvedConfig struct {
	Config  IdentifierConfig
	Backend BackendConfig
	Profile DataProfile
}

type WriteBack struct {
	ConfigID   string
	ObjectID   string
	Field      string
	Value      string
	Identifier string
}
