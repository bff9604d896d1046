package entityloader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/repository"
)

// PointerKey identifies one pointer lookup. Lookups carrying different
// populate instructions are fetched separately.
type PointerKey struct {
	ContentType string
	ID          string
	Populate    any
	populateKey string
}

// NewPointerKey builds a key for pointer p fetched with populate.
func NewPointerKey(p domain.Pointer, populate any) PointerKey {
	key := PointerKey{ContentType: p.ContentType, ID: p.ID, Populate: populate}
	if populate != nil {
		if data, err := json.Marshal(populate); err == nil {
			key.populateKey = string(data)
		}
	}
	return key
}

// String implements dataloader.Key
func (k PointerKey) String() string {
	return k.ContentType + "\x1f" + k.ID + "\x1f" + k.populateKey
}

// Raw implements dataloader.Key
func (k PointerKey) Raw() interface{} {
	return k
}

type EntityLoader struct {
	Loader *dataloader.Loader
}

// NewEntityLoader creates a request-scoped loader that batches pointer lookups
// of the same content type into a single FindMany. Results are never cached.
func NewEntityLoader(repo repository.DocumentRepository) *EntityLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		type group struct {
			contentType string
			populate    any
			ids         []string
			positions   []int
		}
		groups := map[string]*group{}
		var order []string

		for i, k := range keys {
			key, ok := k.Raw().(PointerKey)
			if !ok {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid pointer key %q", k.String())}
				continue
			}
			groupKey := key.ContentType + "\x1f" + key.populateKey
			g, exists := groups[groupKey]
			if !exists {
				g = &group{contentType: key.ContentType, populate: key.Populate}
				groups[groupKey] = g
				order = append(order, groupKey)
			}
			g.ids = append(g.ids, key.ID)
			g.positions = append(g.positions, i)
		}

		for _, groupKey := range order {
			g := groups[groupKey]
			entities, err := repo.FindMany(ctx, g.contentType, domain.FindOptions{
				Filters:  domain.FilterTree{domain.FieldDocumentID: map[string]any{domain.OpIn: toAny(g.ids)}},
				Populate: g.populate,
			})
			if err != nil {
				for _, pos := range g.positions {
					results[pos] = &dataloader.Result{Error: err}
				}
				continue
			}

			// Map documentId -> entity, preferring the published row
			byID := make(map[string]domain.Entity, len(entities))
			for _, e := range entities {
				id, ok := domain.DocumentID(e)
				if !ok {
					continue
				}
				if existing, seen := byID[id]; !seen || (!domain.IsPublished(existing) && domain.IsPublished(e)) {
					byID[id] = e
				}
			}

			// Build results in the same order as keys
			for j, pos := range g.positions {
				if e, ok := byID[g.ids[j]]; ok {
					results[pos] = &dataloader.Result{Data: domain.CloneEntity(e)}
				} else {
					results[pos] = &dataloader.Result{Data: nil}
				}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(
		batchFn,
		dataloader.WithWait(5*time.Millisecond),
		dataloader.WithCache(&dataloader.NoCache{}),
	)

	return &EntityLoader{Loader: loader}
}

// Load resolves p through the batch. A missing document yields nil, nil.
func (l *EntityLoader) Load(ctx context.Context, p domain.Pointer, populate any) (domain.Entity, error) {
	data, err := l.Loader.Load(ctx, NewPointerKey(p, populate))()
	if err != nil {
		return nil, err
	}
	entity, _ := data.(domain.Entity)
	return entity, nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

type ctxKey string

const entityLoaderKey ctxKey = "entityLoader"

// NewContext returns ctx carrying loader.
func NewContext(ctx context.Context, loader *EntityLoader) context.Context {
	return context.WithValue(ctx, entityLoaderKey, loader)
}

// FromContext retrieves the request-scoped loader, if any.
func FromContext(ctx context.Context) *EntityLoader {
	if l, ok := ctx.Value(entityLoaderKey).(*EntityLoader); ok {
		return l
	}
	return nil
}
