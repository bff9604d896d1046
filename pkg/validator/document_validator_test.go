package validator

import (
	"testing"

	"github.com/rpattn/polyrel/internal/domain"
)

func articleType() domain.ContentType {
	return domain.ContentType{
		UID: "api::article.article",
		Attributes: map[string]domain.AttributeDescriptor{
			"author": {
				Type:        "json",
				CustomField: domain.CustomFieldPolymorphic,
				Required:    true,
				Options: domain.AttributeOptions{
					AllowedTypes: []string{"api::author.author"},
					RelationType: domain.RelationOne,
				},
			},
			"related": {
				Type:        "json",
				CustomField: domain.CustomFieldPolymorphic,
			},
			"mentions": {
				Type:        "json",
				CustomField: domain.CustomFieldInversePolymorphic,
				Options:     domain.AttributeOptions{TargetModel: "api::note.note", TargetField: "subject"},
			},
			"kind": {
				Type:        "string",
				CustomField: domain.CustomFieldContentTypeSelect,
			},
		},
	}
}

func TestDocumentValidatorPointerField(t *testing.T) {
	v := NewDocumentValidator()
	ct := articleType()

	result := v.Validate(map[string]any{}, ct)
	if result.IsValid {
		t.Fatalf("expected missing required pointer to be rejected")
	}

	result = v.Validate(map[string]any{"author": map[string]any{"contentType": "api::author.author", "id": "a1"}}, ct)
	if !result.IsValid {
		t.Fatalf("expected pointer object to be accepted, got errors: %+v", result.Errors)
	}

	result = v.Validate(map[string]any{"author": `{"contentType":"api::author.author","id":"a1"}`}, ct)
	if !result.IsValid {
		t.Fatalf("expected JSON string encoding to be accepted, got errors: %+v", result.Errors)
	}

	result = v.Validate(map[string]any{"author": map[string]any{"contentType": "api::tag.tag", "id": "t1"}}, ct)
	if result.IsValid {
		t.Fatalf("expected disallowed content type to be rejected")
	}

	result = v.Validate(map[string]any{"author": map[string]any{"id": "a1"}}, ct)
	if result.IsValid {
		t.Fatalf("expected pointer without contentType to be rejected")
	}

	result = v.Validate(map[string]any{"author": "not json"}, ct)
	if result.IsValid {
		t.Fatalf("expected unparseable string to be rejected")
	}
}

func TestDocumentValidatorRelationOne(t *testing.T) {
	v := NewDocumentValidator()

	result := v.Validate(map[string]any{"author": []any{
		map[string]any{"contentType": "api::author.author", "id": "a1"},
		map[string]any{"contentType": "api::author.author", "id": "a2"},
	}}, articleType())
	if result.IsValid {
		t.Fatalf("expected two pointers in a single relation to be rejected")
	}
}

func TestDocumentValidatorListErrorsCarryIndex(t *testing.T) {
	v := NewDocumentValidator()

	result := v.Validate(map[string]any{
		"author":  map[string]any{"contentType": "api::author.author", "id": "a1"},
		"related": []any{map[string]any{"contentType": "api::tag.tag", "id": "t1"}, "oops"},
	}, articleType())
	if result.IsValid || len(result.Errors) != 1 {
		t.Fatalf("expected one element error, got %+v", result.Errors)
	}
	if result.Errors[0].Field != "related[1]" {
		t.Fatalf("expected error on related[1], got %s", result.Errors[0].Field)
	}
}

func TestDocumentValidatorInverseWarning(t *testing.T) {
	v := NewDocumentValidator()

	result := v.Validate(map[string]any{
		"author":   map[string]any{"contentType": "api::author.author", "id": "a1"},
		"mentions": []any{},
	}, articleType())
	if !result.IsValid {
		t.Fatalf("expected stored inverse value not to fail validation, got %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Field != "mentions" {
		t.Fatalf("expected a warning for the inverse field, got %+v", result.Warnings)
	}
}

func TestDocumentValidatorContentTypeSelect(t *testing.T) {
	v := NewDocumentValidator()

	result := v.Validate(map[string]any{
		"author": map[string]any{"contentType": "api::author.author", "id": "a1"},
		"kind":   float64(3),
	}, articleType())
	if result.IsValid {
		t.Fatalf("expected non-string content type select to be rejected")
	}
}
