package domain

import (
	"reflect"
	"strconv"
	"strings"
)

// PopulateWildcard expands every field at every depth.
const PopulateWildcard = "*"

// PopulateSpec is a client-supplied instruction tree selecting which fields to
// expand. It wraps the raw value (string, bool, sequence or map) so the
// accepted syntaxes stay exactly those callers already send.
type PopulateSpec struct {
	raw any
}

// ParsePopulate wraps a raw populate value.
func ParsePopulate(raw any) PopulateSpec {
	if spec, ok := raw.(PopulateSpec); ok {
		return spec
	}
	return PopulateSpec{raw: raw}
}

// Raw returns the value the spec was built from.
func (s PopulateSpec) Raw() any {
	return s.raw
}

// IsZero reports whether the spec expands nothing.
func (s PopulateSpec) IsZero() bool {
	return !truthy(s.raw)
}

// IsWildcard reports whether the spec is "*" or boolean true.
func (s PopulateSpec) IsWildcard() bool {
	switch v := s.raw.(type) {
	case string:
		return v == PopulateWildcard
	case bool:
		return v
	}
	return false
}

// ShouldExpand decides whether field is expanded. The checks run in a fixed
// order: absent, wildcard, comma list, sequence, map.
func (s PopulateSpec) ShouldExpand(field string) bool {
	if s.IsZero() {
		return false
	}
	if s.IsWildcard() {
		return true
	}
	switch v := s.raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == field {
				return true
			}
		}
		return false
	case []string:
		for _, name := range v {
			if name == field {
				return true
			}
		}
		return false
	case []any:
		for _, name := range v {
			if name == field {
				return true
			}
		}
		return false
	case map[string]any:
		if _, ok := v[field]; ok {
			return true
		}
		return truthy(v[PopulateWildcard])
	}
	return false
}

// Nested returns the spec for the children of field. A wildcard spec is its
// own nested spec; a map yields the value at field when that value is set.
func (s PopulateSpec) Nested(field string) PopulateSpec {
	if s.IsWildcard() {
		return s
	}
	m, ok := s.raw.(map[string]any)
	if !ok {
		return PopulateSpec{}
	}
	value, ok := m[field]
	if !ok || !truthy(value) {
		return PopulateSpec{}
	}
	return PopulateSpec{raw: value}
}

// truthy follows the usual loose rules: nil, false, "", and numeric zero are
// false; everything else, including empty maps and slices, is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// FlagValue interprets boolean-like operator arguments such as $null: true or
// the query-string form "false".
func FlagValue(v any) bool {
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return truthy(v)
}
