package repository

import (
	"context"

	"github.com/rpattn/polyrel/internal/domain"
)

// DocumentRepository is the read facade over the document store.
type DocumentRepository interface {
	// FindOne returns the representative row of a document, preferring the
	// published row. A missing document yields an error wrapping domain.ErrNotFound.
	FindOne(ctx context.Context, contentType, documentID string, opts domain.FindOptions) (domain.Entity, error)
	// FindMany returns rows of contentType in store order.
	FindMany(ctx context.Context, contentType string, opts domain.FindOptions) ([]domain.Entity, error)
}

// DocumentWriter inserts documents. It is used for seeding fixtures.
type DocumentWriter interface {
	Insert(ctx context.Context, contentType string, doc domain.Entity) (domain.Entity, error)
}

// ContentTypeRegistry exposes the read-only schema registry.
type ContentTypeRegistry interface {
	ListTypes() []domain.ContentTypeDescriptor
	GetSchema(uid string) (domain.ContentType, bool)
	FindByPluralName(name string) (domain.ContentType, bool)
}
