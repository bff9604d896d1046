package polymorphic

import (
	"context"
	"fmt"

	"github.com/rpattn/polyrel/internal/domain"
)

// FindReverse returns the entities of q.TargetModel whose q.TargetField points
// at {q.LookupType, q.LookupID}, one per document, in store order. Failures
// are logged and yield an empty result.
func (s *Service) FindReverse(ctx context.Context, q domain.ReverseQuery) []domain.Entity {
	matches, err := s.findReverse(ctx, q)
	if err != nil {
		s.logger.Error("reverse relation lookup failed",
			"targetModel", q.TargetModel, "targetField", q.TargetField,
			"lookupType", q.LookupType, "lookupId", q.LookupID, "err", err)
		return []domain.Entity{}
	}
	return matches
}

func (s *Service) findReverse(ctx context.Context, q domain.ReverseQuery) ([]domain.Entity, error) {
	target, ok := s.registry.GetSchema(q.TargetModel)
	if !ok {
		s.logger.Debug("reverse relation target model not registered", "targetModel", q.TargetModel)
		return []domain.Entity{}, nil
	}

	fields := []string{domain.FieldID, domain.FieldDocumentID, q.TargetField}
	if q.DisplayField != "" && q.DisplayField != q.TargetField && target.HasAttribute(q.DisplayField) {
		fields = append(fields, q.DisplayField)
	}

	rows, err := s.documents.FindMany(ctx, q.TargetModel, domain.FindOptions{
		Select: fields,
		Limit:  s.cfg.ReverseScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", q.TargetModel, err)
	}
	if len(rows) >= s.cfg.ReverseScanLimit {
		s.logger.Warn("reverse relation scan reached its limit; later rows were not inspected",
			"targetModel", q.TargetModel, "limit", s.cfg.ReverseScanLimit)
	}

	matches := []domain.Entity{}
	for _, row := range rows {
		decoded := domain.DecodePointerField(row[q.TargetField])
		for _, p := range decoded.Pointers {
			if p.Matches(q.LookupType, q.LookupID) {
				matches = append(matches, row)
				break
			}
		}
	}
	return domain.DedupeByIdentity(matches), nil
}
