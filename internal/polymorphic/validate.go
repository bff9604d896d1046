package polymorphic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/pkg/validator"
)

// ValidatePointer checks that value is a well-formed pointer to an existing
// entity of an allowed, registered content type. A nil value is valid.
func (s *Service) ValidatePointer(ctx context.Context, value any, allowedTypes []string) error {
	if value == nil {
		return nil
	}

	m, _ := value.(map[string]any)
	contentType := domain.Stringify(m["contentType"])
	id := domain.Stringify(m["id"])
	if contentType == "" || id == "" {
		return &domain.ValidationError{Message: "polymorphic relation must have contentType and id properties"}
	}

	if len(allowedTypes) > 0 && !contains(allowedTypes, contentType) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("content type %q is not in allowed types: %s", contentType, strings.Join(allowedTypes, ", ")),
		}
	}

	if _, ok := s.registry.GetSchema(contentType); !ok {
		return &domain.ValidationError{
			Message: fmt.Sprintf("content type %q does not exist", contentType),
			Err:     domain.ErrUnknownContentType,
		}
	}

	_, err := s.documents.FindOne(ctx, contentType, id, domain.FindOptions{Select: []string{domain.FieldDocumentID}})
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("entity with id %q not found in content type %q", id, contentType),
			Err:     domain.ErrNotFound,
		}
	}
	if err != nil {
		return &domain.ValidationError{Message: "failed to validate polymorphic relation", Err: err}
	}
	return nil
}

// ValidateDocument checks the shape of every polymorphic attribute of data
// and that each pointer refers to an existing entity.
func (s *Service) ValidateDocument(ctx context.Context, contentType string, data map[string]any) (validator.ValidationResult, error) {
	ct, err := s.Schema(contentType)
	if err != nil {
		return validator.ValidationResult{}, err
	}

	result := validator.NewDocumentValidator().Validate(data, ct)
	for _, field := range ct.PolymorphicFields() {
		decoded := domain.DecodePointerField(data[field.Name])
		for i, p := range decoded.Pointers {
			if len(field.Options.AllowedTypes) > 0 && !contains(field.Options.AllowedTypes, p.ContentType) {
				continue
			}
			if err := s.ValidatePointer(ctx, p.Map(), nil); err != nil {
				label := field.Name
				if decoded.Multiple {
					label = fmt.Sprintf("%s[%d]", field.Name, i)
				}
				result.IsValid = false
				result.Errors = append(result.Errors, validator.ValidationError{
					Field:   label,
					Message: err.Error(),
					Value:   p.Map(),
				})
			}
		}
	}
	return result, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
