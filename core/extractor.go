package core

import (
	"reflect"
	"strings"
)

// FieldExtractor reads the profile's source fields off an object.
type FieldExtractor struct{}

// Extract returns the profile's output keys in mapping order. A source field
// the object does not carry reads as the empty string. The variant key
// transform is applied last.
func (FieldExtractor) Extract(obj TargetObject, profile DataProfile) (Fields, error) {
	if isNilObject(obj) {
		return nil, PreconditionFailure(
			ReasonObjectUnavailable,
			"core: object is unavailable for field extraction",
			map[string]any{"profile_ref": profile.ID},
		)
	}
	fields := make(Fields, 0, len(profile.Mappings))
	for _, mapping := range profile.Mappings {
		key := profile.TransformKey(strings.TrimSpace(mapping.OutputKey))
		fields = fields.Set(key, obj.Get(strings.TrimSpace(mapping.SourceField)))
	}
	return fields, nil
}

func isNilObject(obj TargetObject) bool {
	if obj == nil {
		return true
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface:
		return value.IsNil()
	default:
		return false
	}
}
