// Package schema holds the read-only content type registry injected into the
// polymorphic services.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/schema/validator"
)

// DefaultIgnoredTypes are never offered as pointer targets.
var DefaultIgnoredTypes = []string{
	"admin::permission",
	"admin::user",
	"admin::role",
	"admin::api-token",
	"admin::api-token-permission",
	"admin::transfer-token",
	"admin::transfer-token-permission",
	"plugin::upload.file",
	"plugin::upload.folder",
	"plugin::i18n.locale",
	"plugin::users-permissions.permission",
	"plugin::users-permissions.role",
	"plugin::content-releases.release",
	"plugin::content-releases.release-action",
}

// Registry is an immutable set of content types built once at startup.
type Registry struct {
	types    map[string]domain.ContentType
	byPlural map[string]string
	order    []string
}

type registryFile struct {
	ContentTypes []domain.ContentType `yaml:"contentTypes"`
}

// NewRegistry validates the content types and indexes them by uid and plural name.
func NewRegistry(types ...domain.ContentType) (*Registry, error) {
	r := &Registry{
		types:    make(map[string]domain.ContentType, len(types)),
		byPlural: make(map[string]string, len(types)),
	}
	for _, ct := range types {
		ct = ct.WithDefaults()
		if _, err := validator.ValidateAttributes(ct); err != nil {
			return nil, fmt.Errorf("invalid content type %s: %w", ct.UID, err)
		}
		if _, exists := r.types[ct.UID]; exists {
			return nil, fmt.Errorf("duplicate content type %s", ct.UID)
		}
		if other, exists := r.byPlural[ct.PluralName]; exists {
			return nil, fmt.Errorf("content types %s and %s share plural name %s", other, ct.UID, ct.PluralName)
		}
		r.types[ct.UID] = ct
		r.byPlural[ct.PluralName] = ct.UID
		r.order = append(r.order, ct.UID)
	}
	if err := validator.ValidateInverseTargets(r.types); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRegistry reads every *.yaml and *.yml file in dir. Each file lists
// content types under a top-level contentTypes key.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var types []domain.ContentType
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		var file registryFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
		}
		types = append(types, file.ContentTypes...)
	}

	return NewRegistry(types...)
}

// ListTypes returns descriptors for every registered type in load order.
func (r *Registry) ListTypes() []domain.ContentTypeDescriptor {
	out := make([]domain.ContentTypeDescriptor, 0, len(r.order))
	for _, uid := range r.order {
		out = append(out, r.types[uid].Descriptor())
	}
	return out
}

// GetSchema returns the content type registered under uid.
func (r *Registry) GetSchema(uid string) (domain.ContentType, bool) {
	ct, ok := r.types[uid]
	return ct, ok
}

// FindByPluralName resolves the content API route segment to a content type.
func (r *Registry) FindByPluralName(name string) (domain.ContentType, bool) {
	uid, ok := r.byPlural[name]
	if !ok {
		return domain.ContentType{}, false
	}
	return r.types[uid], true
}

// AvailableTypes lists the types offered as pointer targets.
func (r *Registry) AvailableTypes(allowed, ignored []string) []domain.ContentTypeDescriptor {
	return FilterAvailable(r.ListTypes(), allowed, ignored)
}

// FilterAvailable restricts types to allowed when it is non-empty, drops
// ignored, and sorts the rest by display name.
func FilterAvailable(types []domain.ContentTypeDescriptor, allowed, ignored []string) []domain.ContentTypeDescriptor {
	allow := toSet(allowed)
	ignore := toSet(ignored)

	out := []domain.ContentTypeDescriptor{}
	for _, descriptor := range types {
		if len(allow) > 0 {
			if _, ok := allow[descriptor.UID]; !ok {
				continue
			}
		}
		if _, ok := ignore[descriptor.UID]; ok {
			continue
		}
		out = append(out, descriptor)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
