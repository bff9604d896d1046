package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/filter"
)

// MemoryDocuments is an in-process document store. Rows are kept per content
// type in insertion order and evaluated with the filter package.
type MemoryDocuments struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string][]domain.Entity
}

// NewMemoryDocuments creates an empty store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{rows: make(map[string][]domain.Entity)}
}

// Insert stores a copy of doc, assigning the row key and, when missing, a documentId.
func (m *MemoryDocuments) Insert(_ context.Context, contentType string, doc domain.Entity) (domain.Entity, error) {
	normalized, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	normalized[domain.FieldID] = m.nextID
	if _, ok := domain.DocumentID(normalized); !ok {
		normalized[domain.FieldDocumentID] = uuid.NewString()
	}
	if _, ok := normalized[domain.FieldPublishedAt]; !ok {
		normalized[domain.FieldPublishedAt] = nil
	}
	delete(normalized, domain.FieldContentTypeTag)

	m.rows[contentType] = append(m.rows[contentType], normalized)
	return domain.CloneEntity(normalized), nil
}

// FindMany filters, pages and projects the rows of contentType.
func (m *MemoryDocuments) FindMany(_ context.Context, contentType string, opts domain.FindOptions) ([]domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []domain.Entity{}
	skipped := 0
	for _, row := range m.rows[contentType] {
		if len(opts.Filters) > 0 && !filter.MatchFilter(row, opts.Filters) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
		result = append(result, project(row, opts.Select))
	}
	return result, nil
}

// FindOne returns the published row of a document, falling back to its first row.
func (m *MemoryDocuments) FindOne(_ context.Context, contentType, documentID string, opts domain.FindOptions) (domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found domain.Entity
	for _, row := range m.rows[contentType] {
		id, _ := domain.DocumentID(row)
		if id != documentID {
			continue
		}
		if found == nil || (!domain.IsPublished(found) && domain.IsPublished(row)) {
			found = row
		}
	}
	if found == nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", contentType, documentID, domain.ErrNotFound)
	}
	return project(found, opts.Select), nil
}

func project(row domain.Entity, fields []string) domain.Entity {
	if len(fields) == 0 {
		return domain.CloneEntity(row)
	}
	out := domain.Entity{
		domain.FieldID:         row[domain.FieldID],
		domain.FieldDocumentID: row[domain.FieldDocumentID],
	}
	for _, field := range fields {
		if value, ok := row[field]; ok {
			out[field] = domain.CloneValue(value)
		}
	}
	return out
}

// normalizeDocument round-trips doc through JSON so values have the same
// shapes a JSONB column returns: float64 numbers, RFC3339 timestamps, []any.
func normalizeDocument(doc domain.Entity) (domain.Entity, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	out := domain.Entity{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return out, nil
}

// SeedFile lists documents per content type uid.
type SeedFile struct {
	Documents map[string][]map[string]any `yaml:"documents"`
}

// LoadSeed reads a YAML seed file and inserts every document through writer.
// Content types are seeded in uid order so generated row keys are stable.
func LoadSeed(ctx context.Context, writer DocumentWriter, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	types := make([]string, 0, len(seed.Documents))
	for uid := range seed.Documents {
		types = append(types, uid)
	}
	sort.Strings(types)

	count := 0
	for _, uid := range types {
		for _, doc := range seed.Documents[uid] {
			if _, err := writer.Insert(ctx, uid, doc); err != nil {
				return count, fmt.Errorf("failed to seed %s: %w", uid, err)
			}
			count++
		}
	}
	return count, nil
}
