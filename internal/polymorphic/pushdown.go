package polymorphic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/filter"
)

// PushdownResult is the filter to send to the store after polymorphic
// predicates were evaluated in memory.
type PushdownResult struct {
	Filters domain.FilterTree
	// Empty is set when no entry can qualify; the store query should be skipped.
	Empty bool
	// Rewritten is set when polymorphic predicates were replaced by an
	// identity constraint.
	Rewritten bool
}

type polyPredicate struct {
	field     domain.NamedAttribute
	predicate any
}

// Pushdown replaces predicates on polymorphic fields of ownerType by a
// documentId membership clause. Store failures are logged and the original
// filter is returned unchanged.
func (s *Service) Pushdown(ctx context.Context, ownerType string, filters domain.FilterTree) PushdownResult {
	passThrough := PushdownResult{Filters: filters}
	if len(filters) == 0 {
		return passThrough
	}
	ct, ok := s.registry.GetSchema(ownerType)
	if !ok {
		return passThrough
	}

	var predicates []polyPredicate
	var polyKeys []string
	for key, value := range filters {
		if field, ok := ct.PolymorphicAttribute(key); ok {
			predicates = append(predicates, polyPredicate{field: field, predicate: value})
			polyKeys = append(polyKeys, key)
		}
	}
	if len(predicates) == 0 {
		return passThrough
	}
	sort.Slice(predicates, func(i, j int) bool { return predicates[i].field.Name < predicates[j].field.Name })

	ordinary := filters.Without(polyKeys...)
	ids, err := s.qualifyingIDs(ctx, ownerType, ordinary, predicates)
	if err != nil {
		s.logger.Error("polymorphic filter pushdown failed; running the unfiltered query", "ownerType", ownerType, "err", err)
		return passThrough
	}

	if existing, ok := ordinary[domain.FieldDocumentID]; ok {
		kept := ids[:0]
		for _, id := range ids {
			if filter.Matches(id, existing) {
				kept = append(kept, id)
			}
		}
		ids = kept
	}

	if len(ids) == 0 {
		s.logger.Debug("polymorphic filter matched no entries", "ownerType", ownerType)
		return PushdownResult{Filters: filters, Empty: true}
	}

	rewritten := ordinary.Without(domain.FieldDocumentID)
	rewritten[domain.FieldDocumentID] = map[string]any{domain.OpIn: ids}
	s.logger.Debug("polymorphic filter pushed down", "ownerType", ownerType, "matches", len(ids))
	return PushdownResult{Filters: rewritten, Rewritten: true}
}

// qualifyingIDs scans ownerType and returns, in store order, the documentIds
// of entries satisfying every predicate.
func (s *Service) qualifyingIDs(ctx context.Context, ownerType string, ordinary domain.FilterTree, predicates []polyPredicate) ([]any, error) {
	fields := []string{domain.FieldID, domain.FieldDocumentID}
	for _, p := range predicates {
		if p.field.IsPolymorphic() {
			fields = append(fields, p.field.Name)
		}
	}

	// Ordinary predicates are applied by the final query as well; using them
	// here only narrows the scan.
	scanFilters := ordinary.Without(domain.FieldDocumentID)
	if len(scanFilters) == 0 {
		scanFilters = nil
	}
	rows, err := s.documents.FindMany(ctx, ownerType, domain.FindOptions{
		Select:  fields,
		Filters: scanFilters,
		Limit:   s.cfg.PushdownScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", ownerType, err)
	}
	if len(rows) >= s.cfg.PushdownScanLimit {
		s.logger.Warn("polymorphic filter scan reached its limit; later rows were not inspected",
			"ownerType", ownerType, "limit", s.cfg.PushdownScanLimit)
	}

	qualifies := make([]bool, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, row := range rows {
		g.Go(func() error {
			for _, p := range predicates {
				ok, err := s.predicateHolds(gctx, ownerType, row, p)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			qualifies[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := []any{}
	seen := map[string]struct{}{}
	for i, row := range rows {
		if !qualifies[i] {
			continue
		}
		id, ok := domain.DocumentID(row)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) predicateHolds(ctx context.Context, ownerType string, row domain.Entity, p polyPredicate) (bool, error) {
	if p.field.IsInverse() {
		return s.inversePredicateHolds(ctx, ownerType, row, p)
	}

	// an entry without a pointer fails every predicate on the field
	decoded := domain.DecodePointerField(row[p.field.Name])
	if decoded.Empty() {
		return false, nil
	}
	switch {
	case domain.IsOperatorMap(p.predicate):
		return filter.Matches(row[p.field.Name], p.predicate), nil
	case !isTree(p.predicate):
		want := domain.Stringify(p.predicate)
		for _, ptr := range decoded.Pointers {
			if ptr.ID == want {
				return true, nil
			}
		}
		return false, nil
	}

	tree, _ := domain.AsFilterTree(p.predicate)
	targets, err := s.resolveAll(ctx, decoded.Pointers)
	if err != nil {
		return false, err
	}
	return anyMatches(targets, tree), nil
}

func (s *Service) inversePredicateHolds(ctx context.Context, ownerType string, row domain.Entity, p polyPredicate) (bool, error) {
	opts := p.field.Options
	identity, ok := domain.LookupID(row)
	if !ok || opts.TargetModel == "" || opts.TargetField == "" {
		return false, nil
	}

	matches, err := s.findReverse(ctx, domain.ReverseQuery{
		TargetModel:  opts.TargetModel,
		TargetField:  opts.TargetField,
		LookupType:   ownerType,
		LookupID:     identity,
		DisplayField: opts.TargetDisplayField,
	})
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	switch {
	case domain.IsOperatorMap(p.predicate):
		return filter.Matches(matches, p.predicate), nil
	case !isTree(p.predicate):
		want := domain.Stringify(p.predicate)
		for _, m := range matches {
			if id, _ := domain.LookupID(m); id == want {
				return true, nil
			}
		}
		return false, nil
	}

	tree, _ := domain.AsFilterTree(p.predicate)
	pointers := make([]domain.Pointer, 0, len(matches))
	for _, m := range matches {
		if id, ok := domain.LookupID(m); ok {
			pointers = append(pointers, domain.Pointer{ContentType: opts.TargetModel, ID: id})
		}
	}
	targets, err := s.resolveAll(ctx, pointers)
	if err != nil {
		return false, err
	}
	return anyMatches(targets, tree), nil
}

// resolveAll loads every pointer concurrently. Missing targets are omitted.
func (s *Service) resolveAll(ctx context.Context, pointers []domain.Pointer) ([]domain.Entity, error) {
	var (
		mu      sync.Mutex
		targets = make([]domain.Entity, 0, len(pointers))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, p := range pointers {
		g.Go(func() error {
			entity, err := s.resolvePointer(gctx, p, nil)
			if err != nil {
				return err
			}
			if entity != nil {
				mu.Lock()
				targets = append(targets, entity)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return targets, nil
}

func anyMatches(targets []domain.Entity, tree domain.FilterTree) bool {
	for _, target := range targets {
		if filter.MatchFilter(target, tree) {
			return true
		}
	}
	return false
}

func isTree(v any) bool {
	_, ok := domain.AsFilterTree(v)
	return ok
}
