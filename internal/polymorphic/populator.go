package polymorphic

import (
	"context"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rpattn/polyrel/internal/domain"
)

// Populate expands the polymorphic fields of data in place. data is a single
// entity or a sequence of entities of ownerType; ownerType may be empty for
// component values. Forward failures are logged and leave the field as it
// was; inverse fields are always written, empty when their lookup fails.
func (s *Service) Populate(ctx context.Context, data any, ownerType string, spec domain.PopulateSpec) {
	if data == nil {
		return
	}
	w := &walker{svc: s, visited: make(map[uintptr]struct{})}
	w.walk(ctx, data, ownerType, spec, nil, 0)
}

type ancestor struct {
	contentType string
	id          string
}

// walker holds the state of one populate pass.
type walker struct {
	svc *Service

	mu      sync.Mutex
	visited map[uintptr]struct{}

	// data orders reads of shared maps against the final field assignments.
	data sync.RWMutex
}

// enter marks item as visited and reports whether it was new.
func (w *walker) enter(item map[string]any) bool {
	key := reflect.ValueOf(item).Pointer()
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.visited[key]; ok {
		return false
	}
	w.visited[key] = struct{}{}
	return true
}

func (w *walker) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(w.svc.cfg.Parallelism)
	return g
}

func (w *walker) walk(ctx context.Context, data any, ownerType string, spec domain.PopulateSpec, chain []ancestor, depth int) {
	if depth > w.svc.cfg.MaxDepth {
		w.svc.logger.Debug("populate depth limit reached", "ownerType", ownerType, "maxDepth", w.svc.cfg.MaxDepth)
		return
	}

	switch v := data.(type) {
	case map[string]any:
		w.populateItem(ctx, v, ownerType, spec, chain, depth)
	case []any:
		g := w.group()
		for _, item := range v {
			g.Go(func() error {
				w.walk(ctx, item, ownerType, spec, chain, depth)
				return nil
			})
		}
		_ = g.Wait()
	case []map[string]any:
		g := w.group()
		for _, item := range v {
			g.Go(func() error {
				w.populateItem(ctx, item, ownerType, spec, chain, depth)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// listEntry is one element of a pointer list, decided before any goroutine runs.
type listEntry struct {
	kept    any
	pointer domain.Pointer
}

// populateItem computes the new value of every affected field concurrently
// and assigns them once all of them are known.
func (w *walker) populateItem(ctx context.Context, item map[string]any, ownerType string, spec domain.PopulateSpec, chain []ancestor, depth int) {
	if item == nil || !w.enter(item) {
		return
	}

	if ownerType != "" {
		if id, ok := domain.LookupID(item); ok {
			chain = append(chain[:len(chain):len(chain)], ancestor{contentType: ownerType, id: id})
		}
	}

	var (
		mu      sync.Mutex
		updates = map[string]any{}
	)
	set := func(field string, value any) {
		mu.Lock()
		updates[field] = value
		mu.Unlock()
	}

	// Every value is classified before any task starts.
	w.data.RLock()
	tasks := w.plan(ctx, item, ownerType, spec, chain, depth, set)
	w.data.RUnlock()

	g := w.group()
	for _, task := range tasks {
		g.Go(task)
	}
	_ = g.Wait()

	w.data.Lock()
	for field, value := range updates {
		item[field] = value
	}
	w.data.Unlock()
}

// plan reads item and returns one task per field that needs work.
func (w *walker) plan(ctx context.Context, item map[string]any, ownerType string, spec domain.PopulateSpec, chain []ancestor, depth int, set func(string, any)) []func() error {
	var tasks []func() error
	skip := map[string]struct{}{domain.FieldContentTypeTag: {}}
	forward := map[string]struct{}{}

	// Step A: inverse fields are always filled, as stubs unless requested.
	if ownerType != "" {
		if ct, ok := w.svc.registry.GetSchema(ownerType); ok {
			for _, field := range ct.PolymorphicFields() {
				forward[field.Name] = struct{}{}
			}
			identity, hasIdentity := domain.LookupID(item)
			for _, field := range ct.InverseFields() {
				skip[field.Name] = struct{}{}
				if field.Options.TargetModel == "" || field.Options.TargetField == "" || !hasIdentity {
					continue
				}
				tasks = append(tasks, func() error {
					set(field.Name, w.inverseValue(ctx, field, ownerType, identity, spec, chain, depth))
					return nil
				})
			}
		} else {
			w.svc.logger.Debug("owner type not registered", "ownerType", ownerType)
		}
	}

	// Step B: forward pointers and nested structures.
	for key, value := range item {
		if _, ok := skip[key]; ok {
			continue
		}

		kind := domain.Classify(value)
		if _, ok := forward[key]; ok && kind == domain.KindScalar {
			kind, value = decodeStored(value)
		}

		switch kind {
		case domain.KindPointer:
			if !spec.ShouldExpand(key) {
				continue
			}
			p, ok := domain.PointerFromValue(value)
			if !ok {
				continue
			}
			nested := spec.Nested(key)
			tasks = append(tasks, func() error {
				resolved, err := w.resolve(ctx, p, nested, chain, depth)
				if err != nil {
					w.svc.logger.Warn("failed to resolve pointer", "field", key, "contentType", p.ContentType, "id", p.ID, "err", err)
					return nil
				}
				if resolved != nil {
					set(key, resolved)
				}
				return nil
			})

		case domain.KindPointerList:
			if !spec.ShouldExpand(key) {
				continue
			}
			entries := listEntries(listOf(value))
			nested := spec.Nested(key)
			tasks = append(tasks, func() error {
				resolved, err := w.resolveList(ctx, entries, nested, chain, depth)
				if err != nil {
					w.svc.logger.Warn("failed to resolve pointer list", "field", key, "err", err)
					return nil
				}
				set(key, resolved)
				return nil
			})

		case domain.KindResolved, domain.KindList, domain.KindObject:
			nested := spec.Nested(key)
			if nested.IsZero() && !spec.IsWildcard() {
				continue
			}
			tasks = append(tasks, func() error {
				w.walk(ctx, value, "", nested, chain, depth+1)
				return nil
			})
		}
	}
	return tasks
}

// decodeStored reads a JSON string encoded polymorphic attribute as the
// pointer or pointer list it holds.
func decodeStored(value any) (domain.ValueKind, any) {
	decoded := domain.DecodePointerField(value)
	if decoded.Empty() {
		return domain.KindScalar, value
	}
	if !decoded.Multiple {
		return domain.KindPointer, decoded.Pointers[0].Map()
	}
	items := make([]any, len(decoded.Pointers))
	for i, p := range decoded.Pointers {
		items[i] = p.Map()
	}
	return domain.KindPointerList, items
}

// inverseValue computes an inverse field. A failed lookup counts as no matches.
func (w *walker) inverseValue(ctx context.Context, field domain.NamedAttribute, ownerType, identity string, spec domain.PopulateSpec, chain []ancestor, depth int) any {
	opts := field.Options
	matches, err := w.svc.findReverse(ctx, domain.ReverseQuery{
		TargetModel:  opts.TargetModel,
		TargetField:  opts.TargetField,
		LookupType:   ownerType,
		LookupID:     identity,
		DisplayField: opts.TargetDisplayField,
	})
	if err != nil {
		w.svc.logger.Warn("failed to populate inverse relation", "field", field.Name, "ownerType", ownerType, "err", err)
		matches = nil
	}

	related := make([]any, len(matches))
	if spec.ShouldExpand(field.Name) {
		nested := spec.Nested(field.Name)
		if nested.IsZero() {
			nested = spec
		}

		g := w.group()
		for i, match := range matches {
			g.Go(func() error {
				related[i] = w.expandMatch(ctx, opts.TargetModel, match, nested, chain, depth)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, match := range matches {
			related[i] = domain.IdentityStub(match)
		}
	}

	w.svc.logger.Debug("populated inverse relation", "field", field.Name, "count", len(related),
		"expanded", spec.ShouldExpand(field.Name), "relationType", opts.RelationType)

	if opts.RelationType == domain.RelationOne {
		if len(related) == 0 {
			return nil
		}
		return related[0]
	}
	return related
}

// expandMatch loads the full entity behind a reverse match and populates it.
// The projected match is used when the full entity cannot be read.
func (w *walker) expandMatch(ctx context.Context, targetModel string, match domain.Entity, nested domain.PopulateSpec, chain []ancestor, depth int) domain.Entity {
	id, ok := domain.LookupID(match)
	if !ok {
		return match
	}
	if inChain(chain, targetModel, id) {
		return match
	}

	full, err := w.svc.resolvePointer(ctx, domain.Pointer{ContentType: targetModel, ID: id}, nested.Raw())
	if err != nil {
		w.svc.logger.Warn("failed to load reverse relation", "contentType", targetModel, "id", id, "err", err)
		full = nil
	}
	if full == nil {
		full = match
	}
	w.walk(ctx, full, targetModel, nested, chain, depth+1)
	return full
}

// resolve expands one pointer and, when nested instructions exist, the
// pointers inside the resolved entity.
func (w *walker) resolve(ctx context.Context, p domain.Pointer, nested domain.PopulateSpec, chain []ancestor, depth int) (domain.Entity, error) {
	resolved, err := w.svc.resolvePointer(ctx, p, nested.Raw())
	if err != nil || resolved == nil {
		return nil, err
	}
	if !nested.IsZero() && !inChain(chain, p.ContentType, p.ID) {
		w.walk(ctx, resolved, p.ContentType, nested, chain, depth+1)
	}
	return resolved, nil
}

// resolveList expands every pointer of a list. Missing targets are dropped and
// already expanded elements are kept. Any failure leaves the list untouched.
func (w *walker) resolveList(ctx context.Context, entries []listEntry, nested domain.PopulateSpec, chain []ancestor, depth int) ([]any, error) {
	results := make([]any, len(entries))
	g := w.group()
	for i, entry := range entries {
		if entry.kept != nil {
			results[i] = entry.kept
			continue
		}
		g.Go(func() error {
			resolved, err := w.resolve(ctx, entry.pointer, nested, chain, depth)
			if err != nil {
				return err
			}
			if resolved != nil {
				results[i] = resolved
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]any, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// listEntries keeps tagged elements, decodes pointers and drops everything else.
func listEntries(items []any) []listEntry {
	entries := make([]listEntry, 0, len(items))
	for _, item := range items {
		if domain.Classify(item) == domain.KindResolved {
			entries = append(entries, listEntry{kept: item})
			continue
		}
		if p, ok := domain.PointerFromValue(item); ok {
			entries = append(entries, listEntry{pointer: p})
		}
	}
	return entries
}

func inChain(chain []ancestor, contentType, id string) bool {
	for _, a := range chain {
		if a.contentType == contentType && a.id == id {
			return true
		}
	}
	return false
}

func listOf(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	return nil
}
