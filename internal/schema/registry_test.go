package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/polyrel/internal/domain"
)

func TestLoadRegistry(t *testing.T) {
	registry, err := LoadRegistry("testdata")
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	types := registry.ListTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 content types, got %d: %v", len(types), types)
	}

	ct, ok := registry.GetSchema("api::author.author")
	if !ok {
		t.Fatalf("expected author schema to be registered")
	}
	inverse := ct.InverseFields()
	if len(inverse) != 1 || inverse[0].Options.TargetField != "author" {
		t.Fatalf("expected articles inverse field targeting author, got %v", inverse)
	}

	byPlural, ok := registry.FindByPluralName("articles")
	if !ok || byPlural.UID != "api::article.article" {
		t.Fatalf("expected plural lookup to resolve article, got %v (%v)", byPlural.UID, ok)
	}

	file, _ := registry.GetSchema("plugin::upload.file")
	if file.APIID != "file" || file.PluralName != "files" || file.Kind != domain.ContentTypeCollection {
		t.Fatalf("expected derived naming defaults, got %+v", file)
	}
	if file.Descriptor().Visible {
		t.Fatalf("expected visible: false to be preserved")
	}
}

func TestAvailableTypes(t *testing.T) {
	registry, err := LoadRegistry("testdata")
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	got := uids(registry.AvailableTypes(nil, DefaultIgnoredTypes))
	if diff := cmp.Diff([]string{"api::article.article", "api::author.author"}, got); diff != "" {
		t.Fatalf("available types mismatch (-want +got):\n%s", diff)
	}

	got = uids(registry.AvailableTypes([]string{"api::author.author", "plugin::upload.file"}, DefaultIgnoredTypes))
	if diff := cmp.Diff([]string{"api::author.author"}, got); diff != "" {
		t.Fatalf("allow list mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRegistryRejectsDanglingInverse(t *testing.T) {
	_, err := NewRegistry(domain.ContentType{
		UID: "api::author.author",
		Attributes: map[string]domain.AttributeDescriptor{
			"articles": {
				Type:        "json",
				CustomField: domain.CustomFieldInversePolymorphic,
				Options:     domain.AttributeOptions{TargetModel: "api::missing.missing", TargetField: "author"},
			},
		},
	})
	if err == nil {
		t.Fatalf("expected registry to reject inverse field with unknown target")
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	ct := domain.ContentType{UID: "api::tag.tag"}
	if _, err := NewRegistry(ct, ct); err == nil {
		t.Fatalf("expected duplicate uid to be rejected")
	}
}

func uids(descriptors []domain.ContentTypeDescriptor) []string {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.UID
	}
	return out
}
