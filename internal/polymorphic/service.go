// Package polymorphic resolves, populates, reverse-locates and filters
// polymorphic relations stored as pointers inside JSONB documents.
package polymorphic

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/repository"
	"github.com/rpattn/polyrel/internal/schema"
)

// Config tunes the scans and fan-out performed by the service.
type Config struct {
	AllowedTypes      []string
	IgnoredTypes      []string
	ReverseScanLimit  int
	PushdownScanLimit int
	MaxDepth          int
	Parallelism       int
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		IgnoredTypes:      schema.DefaultIgnoredTypes,
		ReverseScanLimit:  1000,
		PushdownScanLimit: 10000,
		MaxDepth:          8,
		Parallelism:       16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReverseScanLimit <= 0 {
		c.ReverseScanLimit = d.ReverseScanLimit
	}
	if c.PushdownScanLimit <= 0 {
		c.PushdownScanLimit = d.PushdownScanLimit
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.Parallelism <= 0 {
		c.Parallelism = d.Parallelism
	}
	return c
}

// Service is stateless between calls. Every operation reads the store afresh.
type Service struct {
	documents repository.DocumentRepository
	registry  repository.ContentTypeRegistry
	cfg       Config
	logger    *log.Logger
}

func NewService(documents repository.DocumentRepository, registry repository.ContentTypeRegistry, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		documents: documents,
		registry:  registry,
		cfg:       cfg.withDefaults(),
		logger:    logger.WithPrefix("polymorphic"),
	}
}

// ContentTypes lists the types a pointer may target.
func (s *Service) ContentTypes() []domain.ContentTypeDescriptor {
	return schema.FilterAvailable(s.registry.ListTypes(), s.cfg.AllowedTypes, s.cfg.IgnoredTypes)
}

// Schema returns the registered schema of typeID.
func (s *Service) Schema(typeID string) (domain.ContentType, error) {
	ct, ok := s.registry.GetSchema(typeID)
	if !ok {
		return domain.ContentType{}, fmt.Errorf("content type %s: %w", typeID, domain.ErrUnknownContentType)
	}
	return ct, nil
}

// FindMany runs a content API list request: polymorphic filters are pushed
// down to identity constraints, the store is queried, and the page is populated.
func (s *Service) FindMany(ctx context.Context, typeID string, q domain.Query) ([]domain.Entity, error) {
	if _, err := s.Schema(typeID); err != nil {
		return nil, err
	}

	pushed := s.Pushdown(ctx, typeID, q.Filters)
	if pushed.Empty {
		return []domain.Entity{}, nil
	}

	filters := withStatus(pushed.Filters, q.Status)
	limit, offset := q.Pagination.LimitOffset()
	entities, err := s.documents.FindMany(ctx, typeID, domain.FindOptions{
		Filters:  filters,
		Limit:    limit,
		Offset:   offset,
		Populate: q.Populate.Raw(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", typeID, err)
	}

	s.Populate(ctx, entities, typeID, q.Populate)
	return entities, nil
}

// FindOne fetches a single document and populates it.
func (s *Service) FindOne(ctx context.Context, typeID, documentID string, populate domain.PopulateSpec) (domain.Entity, error) {
	if _, err := s.Schema(typeID); err != nil {
		return nil, err
	}

	entity, err := s.documents.FindOne(ctx, typeID, documentID, domain.FindOptions{Populate: populate.Raw()})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", typeID, documentID, err)
	}

	s.Populate(ctx, entity, typeID, populate)
	return entity, nil
}

// SearchEntities backs the entity picker: a case-insensitive search over the
// usual label attributes.
func (s *Service) SearchEntities(ctx context.Context, typeID, search string, page domain.Pagination) ([]domain.Entity, error) {
	if _, err := s.Schema(typeID); err != nil {
		return nil, err
	}

	var filters domain.FilterTree
	if search != "" {
		filters = domain.FilterTree{domain.OpOr: []any{
			map[string]any{"title": map[string]any{domain.OpContainsi: search}},
			map[string]any{"name": map[string]any{domain.OpContainsi: search}},
			map[string]any{"displayName": map[string]any{domain.OpContainsi: search}},
		}}
	}

	limit, offset := page.LimitOffset()
	entities, err := s.documents.FindMany(ctx, typeID, domain.FindOptions{
		Filters: filters,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", typeID, err)
	}
	return entities, nil
}

// withStatus adds the publication constraint for status. Unknown values keep every row.
func withStatus(filters domain.FilterTree, status string) domain.FilterTree {
	var flag string
	switch status {
	case domain.StatusPublished:
		flag = domain.OpNotNull
	case domain.StatusDraft:
		flag = domain.OpNull
	default:
		return filters
	}

	constraint := map[string]any{domain.FieldPublishedAt: map[string]any{flag: true}}
	if len(filters) == 0 {
		return domain.FilterTree(constraint)
	}
	return domain.FilterTree{domain.OpAnd: []any{map[string]any(filters), constraint}}
}
