package polymorphic

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/filter"
	"github.com/rpattn/polyrel/internal/schema"
)

// fakeDocuments returns rows exactly as they were given, so expectations can
// be written without store generated fields.
type fakeDocuments struct {
	mu           sync.Mutex
	rows         map[string][]domain.Entity
	failMany     map[string]error
	failOne      error
	findOneCalls int
	manyCalls    map[string]int
	lastSelect   map[string][]string
}

func newFakeDocuments(rows map[string][]domain.Entity) *fakeDocuments {
	return &fakeDocuments{
		rows:       rows,
		failMany:   map[string]error{},
		manyCalls:  map[string]int{},
		lastSelect: map[string][]string{},
	}
}

func (f *fakeDocuments) FindOne(_ context.Context, contentType, documentID string, opts domain.FindOptions) (domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findOneCalls++
	if f.failOne != nil {
		return nil, f.failOne
	}
	for _, row := range f.rows[contentType] {
		if id, _ := domain.LookupID(row); id == documentID {
			return domain.CloneEntity(row), nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", contentType, documentID, domain.ErrNotFound)
}

func (f *fakeDocuments) FindMany(_ context.Context, contentType string, opts domain.FindOptions) ([]domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manyCalls[contentType]++
	f.lastSelect[contentType] = opts.Select
	if err := f.failMany[contentType]; err != nil {
		return nil, err
	}

	out := []domain.Entity{}
	skipped := 0
	for _, row := range f.rows[contentType] {
		if len(opts.Filters) > 0 && !filter.MatchFilter(row, opts.Filters) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		entity := domain.CloneEntity(row)
		if len(opts.Select) > 0 {
			projected := domain.Entity{}
			for _, field := range opts.Select {
				if v, ok := entity[field]; ok {
					projected[field] = v
				}
			}
			entity = projected
		}
		out = append(out, entity)
	}
	return out, nil
}

func (f *fakeDocuments) calls(contentType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manyCalls[contentType]
}

const (
	authorType  = "t.author"
	articleType = "t.article"
	orgType     = "t.org"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.NewRegistry(
		domain.ContentType{
			UID:         authorType,
			DisplayName: "Author",
			Attributes: map[string]domain.AttributeDescriptor{
				"name": {Type: "string"},
				"articles": {
					Type:        "json",
					CustomField: domain.CustomFieldInversePolymorphic,
					Options: domain.AttributeOptions{
						TargetModel:        articleType,
						TargetField:        "owner",
						TargetDisplayField: "title",
						RelationType:       domain.RelationMany,
					},
				},
				"latest": {
					Type:        "json",
					CustomField: domain.CustomFieldInversePolymorphic,
					Options: domain.AttributeOptions{
						TargetModel:  articleType,
						TargetField:  "owner",
						RelationType: domain.RelationOne,
					},
				},
			},
		},
		domain.ContentType{
			UID:         articleType,
			DisplayName: "Article",
			Attributes: map[string]domain.AttributeDescriptor{
				"title": {Type: "string"},
				"owner": {
					Type:        "json",
					CustomField: domain.CustomFieldPolymorphic,
					Options: domain.AttributeOptions{
						AllowedTypes: []string{authorType, orgType},
					},
				},
				"sources": {
					Type:        "json",
					CustomField: domain.CustomFieldPolymorphic,
				},
			},
		},
		domain.ContentType{
			UID:         orgType,
			DisplayName: "Organization",
			Attributes: map[string]domain.AttributeDescriptor{
				"name": {Type: "string"},
			},
		},
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func pointerTo(contentType, id string) map[string]any {
	return map[string]any{"contentType": contentType, "id": id}
}

// fixtureRows holds two authors and three articles, one of which stores its
// pointer in the JSON string encoding.
func fixtureRows() map[string][]domain.Entity {
	return map[string][]domain.Entity{
		authorType: {
			{"id": "a1", "documentId": "a1", "name": "Ann"},
			{"id": "a2", "documentId": "a2", "name": "Bob"},
		},
		articleType: {
			{"id": float64(1), "documentId": "e1", "title": "Hello", "owner": pointerTo(authorType, "a1")},
			{"id": float64(2), "documentId": "e2", "title": "World", "owner": pointerTo(authorType, "a2")},
			{"id": float64(3), "documentId": "e3", "title": "Again", "owner": `{"contentType":"t.author","id":"a1"}`},
		},
	}
}

func newTestService(t *testing.T, store *fakeDocuments) *Service {
	t.Helper()
	return NewService(store, testRegistry(t), Config{}, log.New(io.Discard))
}
