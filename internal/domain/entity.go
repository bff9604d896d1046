package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Entity is a document as returned by the store: its full attribute set keyed by
// attribute name, plus the row key "id" and the identity key "documentId".
type Entity = map[string]any

const (
	// FieldID is the version-specific row key.
	FieldID = "id"
	// FieldDocumentID is the stable identity shared by draft and published rows.
	FieldDocumentID = "documentId"
	// FieldPublishedAt marks the published row of a draft/publish pair.
	FieldPublishedAt = "publishedAt"
	// FieldContentTypeTag is the non-persisted tag placed on expanded entities.
	FieldContentTypeTag = "__contentType"
)

// DocumentID returns the identity field of an entity, if present and non-empty.
func DocumentID(e Entity) (string, bool) {
	if e == nil {
		return "", false
	}
	raw, ok := e[FieldDocumentID]
	if !ok || raw == nil {
		return "", false
	}
	id := Stringify(raw)
	if id == "" {
		return "", false
	}
	return id, true
}

// LookupID returns the identity field, falling back to the row key.
func LookupID(e Entity) (string, bool) {
	if id, ok := DocumentID(e); ok {
		return id, true
	}
	if e == nil {
		return "", false
	}
	raw, ok := e[FieldID]
	if !ok || raw == nil {
		return "", false
	}
	id := Stringify(raw)
	return id, id != ""
}

// IdentityStub reduces an entity to {id: <identity>} for shallow inverse relations.
func IdentityStub(e Entity) Entity {
	id, _ := LookupID(e)
	return Entity{FieldID: id}
}

// DedupeByIdentity keeps the first entity for each documentId. Entities without
// a documentId are always kept.
func DedupeByIdentity(entities []Entity) []Entity {
	seen := make(map[string]struct{}, len(entities))
	result := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		id, ok := DocumentID(entity)
		if !ok {
			result = append(result, entity)
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, entity)
	}
	return result
}

// IsPublished reports whether the entity is the published row of its document.
func IsPublished(e Entity) bool {
	if e == nil {
		return false
	}
	v, ok := e[FieldPublishedAt]
	return ok && v != nil && v != ""
}

// Stringify renders scalar values the way they compare as identifiers: numbers
// without exponent or trailing zeros, strings verbatim, nil as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case []byte:
		return string(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(data), `"`)
	}
}

// CloneValue deep-copies maps and slices of a decoded document so callers can
// mutate the result without touching the source.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case FilterTree:
		out := make(FilterTree, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i], _ = CloneValue(val).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// CloneEntity deep-copies an entity.
func CloneEntity(e Entity) Entity {
	if e == nil {
		return nil
	}
	out, _ := CloneValue(e).(map[string]any)
	return out
}
