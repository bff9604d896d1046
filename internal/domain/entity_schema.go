package domain

import (
	"sort"
	"strings"
)

// Custom field identifiers carried by attribute descriptors. They are the
// identifiers persisted in existing schema files and must not change.
const (
	CustomFieldPolymorphic        = "plugin::polymorphic-relation.polymorphic-relation"
	CustomFieldInversePolymorphic = "plugin::polymorphic-relation.inverse-polymorphic-relation"
	CustomFieldContentTypeSelect  = "plugin::polymorphic-relation.content-type-select"
)

// ContentTypeKind distinguishes single types from collection types.
type ContentTypeKind string

const (
	ContentTypeSingle     ContentTypeKind = "single"
	ContentTypeCollection ContentTypeKind = "collection"
)

// RelationType controls whether an inverse field holds one entity or many.
type RelationType string

const (
	RelationOne  RelationType = "one"
	RelationMany RelationType = "many"
)

// AttributeOptions are the declared options of a polymorphic or inverse field.
type AttributeOptions struct {
	AllowedTypes       []string     `json:"allowedTypes,omitempty" yaml:"allowedTypes,omitempty"`
	RelationType       RelationType `json:"relationType,omitempty" yaml:"relationType,omitempty"`
	TargetModel        string       `json:"targetModel,omitempty" yaml:"targetModel,omitempty"`
	TargetField        string       `json:"targetField,omitempty" yaml:"targetField,omitempty"`
	TargetDisplayField string       `json:"targetDisplayField,omitempty" yaml:"targetDisplayField,omitempty"`
	DisplayField       string       `json:"displayField,omitempty" yaml:"displayField,omitempty"`
	Label              string       `json:"label,omitempty" yaml:"label,omitempty"`
}

// AttributeDescriptor describes one attribute of a content type schema.
type AttributeDescriptor struct {
	Type        string           `json:"type" yaml:"type"`
	CustomField string           `json:"customField,omitempty" yaml:"customField,omitempty"`
	Required    bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Options     AttributeOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// IsPolymorphic reports whether the attribute stores forward pointers.
func (a AttributeDescriptor) IsPolymorphic() bool {
	return a.CustomField == CustomFieldPolymorphic
}

// IsInverse reports whether the attribute is computed from other entities' pointers.
func (a AttributeDescriptor) IsInverse() bool {
	return a.CustomField == CustomFieldInversePolymorphic
}

// NamedAttribute pairs an attribute with its field name.
type NamedAttribute struct {
	Name string
	AttributeDescriptor
}

// ContentType is a registry entry: descriptor data plus the attribute schema.
type ContentType struct {
	UID          string                         `json:"uid" yaml:"uid"`
	APIID        string                         `json:"apiID,omitempty" yaml:"apiID,omitempty"`
	SingularName string                         `json:"singularName,omitempty" yaml:"singularName,omitempty"`
	PluralName   string                         `json:"pluralName,omitempty" yaml:"pluralName,omitempty"`
	DisplayName  string                         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Kind         ContentTypeKind                `json:"kind,omitempty" yaml:"kind,omitempty"`
	Visible      *bool                          `json:"visible,omitempty" yaml:"visible,omitempty"`
	Attributes   map[string]AttributeDescriptor `json:"attributes" yaml:"attributes"`
}

// ContentTypeDescriptor is the snapshot returned by the content type listing.
type ContentTypeDescriptor struct {
	UID         string          `json:"uid"`
	APIID       string          `json:"apiID"`
	DisplayName string          `json:"displayName"`
	Kind        ContentTypeKind `json:"kind"`
	Visible     bool            `json:"visible"`
}

// WithDefaults fills the derived naming fields the way the registry expects
// them: apiID from the last uid segment, display name from the apiID.
func (ct ContentType) WithDefaults() ContentType {
	if ct.APIID == "" {
		ct.APIID = lastSegment(ct.UID)
	}
	if ct.SingularName == "" {
		ct.SingularName = ct.APIID
	}
	if ct.PluralName == "" {
		ct.PluralName = ct.SingularName + "s"
	}
	if ct.DisplayName == "" {
		ct.DisplayName = ct.APIID
	}
	if ct.Kind == "" {
		ct.Kind = ContentTypeCollection
	}
	if ct.Attributes == nil {
		ct.Attributes = map[string]AttributeDescriptor{}
	}
	return ct
}

// Descriptor returns the listing snapshot of the content type.
func (ct ContentType) Descriptor() ContentTypeDescriptor {
	visible := true
	if ct.Visible != nil {
		visible = *ct.Visible
	}
	return ContentTypeDescriptor{
		UID:         ct.UID,
		APIID:       ct.APIID,
		DisplayName: ct.DisplayName,
		Kind:        ct.Kind,
		Visible:     visible,
	}
}

// HasAttribute reports whether the schema declares name.
func (ct ContentType) HasAttribute(name string) bool {
	_, ok := ct.Attributes[name]
	return ok
}

// PolymorphicFields returns forward pointer attributes in name order.
func (ct ContentType) PolymorphicFields() []NamedAttribute {
	return ct.fieldsWhere(AttributeDescriptor.IsPolymorphic)
}

// InverseFields returns inverse attributes in name order.
func (ct ContentType) InverseFields() []NamedAttribute {
	return ct.fieldsWhere(AttributeDescriptor.IsInverse)
}

// PolymorphicAttribute returns the attribute when name is a forward or inverse
// polymorphic field.
func (ct ContentType) PolymorphicAttribute(name string) (NamedAttribute, bool) {
	attr, ok := ct.Attributes[name]
	if !ok || (!attr.IsPolymorphic() && !attr.IsInverse()) {
		return NamedAttribute{}, false
	}
	return NamedAttribute{Name: name, AttributeDescriptor: attr}, true
}

func (ct ContentType) fieldsWhere(pred func(AttributeDescriptor) bool) []NamedAttribute {
	names := make([]string, 0, len(ct.Attributes))
	for name, attr := range ct.Attributes {
		if pred(attr) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	fields := make([]NamedAttribute, len(names))
	for i, name := range names {
		fields[i] = NamedAttribute{Name: name, AttributeDescriptor: ct.Attributes[name]}
	}
	return fields
}

func lastSegment(uid string) string {
	if i := strings.LastIndexAny(uid, ".:"); i >= 0 && i < len(uid)-1 {
		return uid[i+1:]
	}
	return uid
}
