package domain

import (
	"encoding/json"
	"strings"
)

const (
	pointerContentTypeKey = "contentType"
	pointerIDKey          = "id"
	pointerLabelKey       = "label"
)

// Pointer is a typed reference to an entity of any registered content type.
type Pointer struct {
	ContentType string `json:"contentType"`
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
}

// Map renders the pointer in its persisted object encoding.
func (p Pointer) Map() map[string]any {
	m := map[string]any{
		pointerContentTypeKey: p.ContentType,
		pointerIDKey:          p.ID,
	}
	if p.Label != "" {
		m[pointerLabelKey] = p.Label
	}
	return m
}

// Matches compares the pointer against a lookup target. Ids are compared as
// strings so numeric and string representations of the same id are equal.
func (p Pointer) Matches(contentType, id string) bool {
	return p.ContentType == contentType && p.ID == id
}

// IsPointer reports whether v is an object carrying both contentType and id.
// Arrays are never pointers.
func IsPointer(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, hasType := m[pointerContentTypeKey]
	_, hasID := m[pointerIDKey]
	return hasType && hasID
}

// PointerFromValue converts an object encoding into a Pointer. Values with an
// empty contentType or id are rejected.
func PointerFromValue(v any) (Pointer, bool) {
	if !IsPointer(v) {
		return Pointer{}, false
	}
	m := v.(map[string]any)
	p := Pointer{
		ContentType: Stringify(m[pointerContentTypeKey]),
		ID:          Stringify(m[pointerIDKey]),
	}
	if label, ok := m[pointerLabelKey].(string); ok {
		p.Label = label
	}
	if p.ContentType == "" || p.ID == "" {
		return Pointer{}, false
	}
	return p, true
}

// DecodedField is the result of reading a polymorphic field's raw value.
type DecodedField struct {
	Pointers []Pointer
	// Multiple is true when the stored value was a sequence.
	Multiple bool
}

// Empty reports whether no pointer was decoded.
func (d DecodedField) Empty() bool {
	return len(d.Pointers) == 0
}

// DecodePointerField reads a polymorphic field stored as an object, an array
// of objects, or a JSON string of either. Unparseable strings decode to an
// empty result.
func DecodePointerField(raw any) DecodedField {
	switch v := raw.(type) {
	case nil:
		return DecodedField{}
	case string:
		return decodePointerJSON([]byte(v))
	case []byte:
		return decodePointerJSON(v)
	case json.RawMessage:
		return decodePointerJSON(v)
	case []any:
		return DecodedField{Pointers: pointersOf(v), Multiple: true}
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return DecodedField{Pointers: pointersOf(items), Multiple: true}
	case map[string]any:
		if p, ok := PointerFromValue(v); ok {
			return DecodedField{Pointers: []Pointer{p}}
		}
		return DecodedField{}
	default:
		return DecodedField{}
	}
}

func decodePointerJSON(data []byte) DecodedField {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return DecodedField{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return DecodedField{}
	}
	switch parsed.(type) {
	case string, []byte:
		// A JSON string inside a JSON string is not a pointer encoding.
		return DecodedField{}
	}
	return DecodePointerField(parsed)
}

func pointersOf(items []any) []Pointer {
	pointers := make([]Pointer, 0, len(items))
	for _, item := range items {
		if p, ok := PointerFromValue(item); ok {
			pointers = append(pointers, p)
		}
	}
	return pointers
}

// ValueKind classifies a value once before the populator decides what to do with it.
type ValueKind int

const (
	KindScalar ValueKind = iota
	// KindPointer is an unexpanded single pointer.
	KindPointer
	// KindResolved is an object already tagged with __contentType.
	KindResolved
	// KindPointerList is a non-empty sequence whose first element is an unexpanded pointer.
	KindPointerList
	// KindList is any other sequence (components, repeatable fields, dynamic zones).
	KindList
	// KindObject is any other object (single components).
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindResolved:
		return "resolved"
	case KindPointerList:
		return "pointer-list"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "scalar"
	}
}

// Classify returns the kind of v.
func Classify(v any) ValueKind {
	switch t := v.(type) {
	case map[string]any:
		if isTagged(t) {
			return KindResolved
		}
		if IsPointer(t) {
			return KindPointer
		}
		return KindObject
	case []any:
		if len(t) > 0 {
			if first, ok := t[0].(map[string]any); ok && IsPointer(first) && !isTagged(first) {
				return KindPointerList
			}
		}
		return KindList
	case []map[string]any:
		if len(t) > 0 && IsPointer(t[0]) && !isTagged(t[0]) {
			return KindPointerList
		}
		return KindList
	default:
		return KindScalar
	}
}

func isTagged(m map[string]any) bool {
	tag, ok := m[FieldContentTypeTag]
	return ok && tag != nil && tag != ""
}
