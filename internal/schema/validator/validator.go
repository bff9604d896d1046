package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/polyrel/internal/domain"
)

var relationTypes = map[domain.RelationType]struct{}{
	"":                  {},
	domain.RelationOne:  {},
	domain.RelationMany: {},
}

// ValidateAttributes ensures polymorphic attribute declarations of one content
// type are well formed. It returns the forward and inverse polymorphic fields
// in name order.
func ValidateAttributes(ct domain.ContentType) ([]domain.NamedAttribute, error) {
	if strings.TrimSpace(ct.UID) == "" {
		return nil, fmt.Errorf("content type is missing a uid")
	}

	var fields []domain.NamedAttribute
	for _, field := range ct.PolymorphicFields() {
		if err := validateOptions(ct.UID, field); err != nil {
			return nil, err
		}
		for _, allowed := range field.Options.AllowedTypes {
			if strings.TrimSpace(allowed) == "" {
				return nil, fmt.Errorf("%s.%s declares an empty allowed type", ct.UID, field.Name)
			}
		}
		fields = append(fields, field)
	}

	for _, field := range ct.InverseFields() {
		if err := validateOptions(ct.UID, field); err != nil {
			return nil, err
		}
		if strings.TrimSpace(field.Options.TargetModel) == "" {
			return nil, fmt.Errorf("inverse field %s.%s must declare targetModel", ct.UID, field.Name)
		}
		if strings.TrimSpace(field.Options.TargetField) == "" {
			return nil, fmt.Errorf("inverse field %s.%s must declare targetField", ct.UID, field.Name)
		}
		fields = append(fields, field)
	}

	return fields, nil
}

func validateOptions(uid string, field domain.NamedAttribute) error {
	if field.Type != "" && field.Type != "json" {
		return fmt.Errorf("field %s.%s uses custom field %s and must be stored as json, got %s", uid, field.Name, field.CustomField, field.Type)
	}
	if _, ok := relationTypes[field.Options.RelationType]; !ok {
		return fmt.Errorf("field %s.%s has unsupported relationType %q", uid, field.Name, field.Options.RelationType)
	}
	return nil
}

// ValidateInverseTargets checks every inverse field against the registry: the
// target model must exist and its target field must be a forward polymorphic
// field.
func ValidateInverseTargets(types map[string]domain.ContentType) error {
	for uid, ct := range types {
		for _, field := range ct.InverseFields() {
			target, ok := types[field.Options.TargetModel]
			if !ok {
				return fmt.Errorf("inverse field %s.%s targets unknown content type %s", uid, field.Name, field.Options.TargetModel)
			}
			attr, ok := target.Attributes[field.Options.TargetField]
			if !ok || !attr.IsPolymorphic() {
				return fmt.Errorf("inverse field %s.%s targets %s.%s which is not a polymorphic field", uid, field.Name, field.Options.TargetModel, field.Options.TargetField)
			}
		}
	}
	return nil
}
