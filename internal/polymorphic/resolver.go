package polymorphic

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/entityloader"
)

// Resolve fetches the entity a pointer value refers to and returns a fresh
// copy tagged with its content type. Values that are not pointers and targets
// that no longer exist resolve to nil without error; store faults are returned.
func (s *Service) Resolve(ctx context.Context, value any, opts domain.ResolveOptions) (domain.Entity, error) {
	p, ok := domain.PointerFromValue(value)
	if !ok {
		return nil, nil
	}
	return s.resolvePointer(ctx, p, opts.Populate)
}

func (s *Service) resolvePointer(ctx context.Context, p domain.Pointer, populate any) (domain.Entity, error) {
	entity, err := s.loadPointer(ctx, p, populate)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		s.logger.Debug("pointer target not found", "contentType", p.ContentType, "id", p.ID)
		return nil, nil
	}

	resolved := make(domain.Entity, len(entity)+1)
	for k, v := range entity {
		resolved[k] = v
	}
	resolved[domain.FieldContentTypeTag] = p.ContentType
	return resolved, nil
}

func (s *Service) loadPointer(ctx context.Context, p domain.Pointer, populate any) (domain.Entity, error) {
	if loader := entityloader.FromContext(ctx); loader != nil {
		entity, err := loader.Load(ctx, p, populate)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", p.ContentType, p.ID, err)
		}
		return entity, nil
	}

	entity, err := s.documents.FindOne(ctx, p.ContentType, p.ID, domain.FindOptions{Populate: populate})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", p.ContentType, p.ID, err)
	}
	return entity, nil
}
