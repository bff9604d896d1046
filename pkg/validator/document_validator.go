package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpattn/polyrel/internal/domain"
)

// DocumentValidator checks the polymorphic attributes of a document against
// its content type before it is written.
type DocumentValidator struct{}

// NewDocumentValidator creates a new document validator
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

func (r *ValidationResult) fail(field, message string, value any) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Value: value})
}

func (r *ValidationResult) warn(field, message string, value any) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message, Value: value})
}

// Validate checks every forward polymorphic attribute declared by ct: the
// stored value must decode to pointers, each pointer must name an allowed
// type, and relationType one holds at most one pointer. Inverse attributes are
// computed on read, so a stored value only produces a warning.
func (dv *DocumentValidator) Validate(doc map[string]any, ct domain.ContentType) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for _, field := range ct.PolymorphicFields() {
		value, exists := doc[field.Name]

		// Required field missing
		if field.Required && (!exists || value == nil) {
			result.fail(field.Name, fmt.Sprintf("required field '%s' is missing", field.Name), nil)
			continue
		}

		if !exists || value == nil {
			continue
		}

		dv.validatePointerField(&result, field, value)
	}

	for _, field := range ct.InverseFields() {
		if value, exists := doc[field.Name]; exists && value != nil {
			result.warn(field.Name, fmt.Sprintf("field '%s' is computed from %s.%s and stored values are ignored", field.Name, field.Options.TargetModel, field.Options.TargetField), value)
		}
	}

	for name, attr := range ct.Attributes {
		if attr.CustomField != domain.CustomFieldContentTypeSelect {
			continue
		}
		if value, exists := doc[name]; exists && value != nil {
			if s, ok := value.(string); !ok || strings.TrimSpace(s) == "" {
				result.fail(name, fmt.Sprintf("field '%s' must be a content type uid string, got %T", name, value), value)
			}
		}
	}

	return result
}

func (dv *DocumentValidator) validatePointerField(result *ValidationResult, field domain.NamedAttribute, value any) {
	items, multiple, ok := dv.rawItems(value)
	if !ok {
		result.fail(field.Name, fmt.Sprintf("field '%s' must be a pointer object, an array of pointers, or a JSON string of either", field.Name), value)
		return
	}

	allowed := make(map[string]struct{}, len(field.Options.AllowedTypes))
	for _, uid := range field.Options.AllowedTypes {
		allowed[uid] = struct{}{}
	}

	for i, item := range items {
		label := field.Name
		if multiple {
			label = fmt.Sprintf("%s[%d]", field.Name, i)
		}
		pointer, ok := domain.PointerFromValue(item)
		if !ok {
			result.fail(label, "polymorphic value must have contentType and id", item)
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[pointer.ContentType]; !ok {
				result.fail(label, fmt.Sprintf("content type %s is not allowed. Allowed types: %s", pointer.ContentType, strings.Join(field.Options.AllowedTypes, ", ")), item)
			}
		}
	}

	if field.Options.RelationType == domain.RelationOne && len(items) > 1 {
		result.fail(field.Name, fmt.Sprintf("field '%s' holds a single relation but has %d pointers", field.Name, len(items)), value)
	}
}

// rawItems splits a stored value into its elements, parsing the JSON string
// encoding when needed.
func (dv *DocumentValidator) rawItems(value any) ([]any, bool, bool) {
	switch v := value.(type) {
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &parsed); err != nil {
			return nil, false, false
		}
		if _, nested := parsed.(string); nested {
			return nil, false, false
		}
		return dv.rawItems(parsed)
	case []any:
		return v, true, true
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		return items, true, true
	case map[string]any:
		return []any{v}, false, true
	default:
		return nil, false, false
	}
}
