// Package filter evaluates the operator language used in content API filters
// against values held in memory.
package filter

import (
	"strings"

	"github.com/rpattn/polyrel/internal/domain"
)

// Matches reports whether value satisfies predicate. A literal predicate is
// compared with strict equality; an operator map requires every known clause
// to hold. Unknown operators are skipped.
func Matches(value, predicate any) bool {
	if !domain.IsOperatorMap(predicate) {
		return equal(value, predicate)
	}
	ops, _ := domain.AsFilterTree(predicate)
	for op, arg := range ops {
		if !domain.IsOperatorKey(op) || domain.IsLogicalOperator(op) {
			continue
		}
		if !evaluate(op, value, arg) {
			return false
		}
	}
	return true
}

func evaluate(op string, value, arg any) bool {
	switch op {
	case domain.OpEq:
		return equal(value, arg)
	case domain.OpNe:
		return !equal(value, arg)
	case domain.OpContains:
		return strings.Contains(domain.Stringify(value), domain.Stringify(arg))
	case domain.OpContainsi:
		return strings.Contains(lower(value), lower(arg))
	case domain.OpNotContains:
		return !strings.Contains(domain.Stringify(value), domain.Stringify(arg))
	case domain.OpNotContainsi:
		return !strings.Contains(lower(value), lower(arg))
	case domain.OpStartsWith:
		return strings.HasPrefix(domain.Stringify(value), domain.Stringify(arg))
	case domain.OpEndsWith:
		return strings.HasSuffix(domain.Stringify(value), domain.Stringify(arg))
	case domain.OpIn:
		items, ok := sequence(arg)
		if !ok {
			return false
		}
		return containsEqual(items, value)
	case domain.OpNotIn:
		items, ok := sequence(arg)
		if !ok {
			return true
		}
		return !containsEqual(items, value)
	case domain.OpLt:
		return ordered(value, arg, func(c int) bool { return c < 0 })
	case domain.OpLte:
		return ordered(value, arg, func(c int) bool { return c <= 0 })
	case domain.OpGt:
		return ordered(value, arg, func(c int) bool { return c > 0 })
	case domain.OpGte:
		return ordered(value, arg, func(c int) bool { return c >= 0 })
	case domain.OpNull:
		return isNull(value) == domain.FlagValue(arg)
	case domain.OpNotNull:
		return isNull(value) != domain.FlagValue(arg)
	default:
		return true
	}
}

func lower(v any) string {
	return strings.ToLower(domain.Stringify(v))
}

func containsEqual(items []any, value any) bool {
	for _, item := range items {
		if equal(value, item) {
			return true
		}
	}
	return false
}

// ordered is false whenever either side is null.
func ordered(value, arg any, accept func(int) bool) bool {
	if isNull(value) || isNull(arg) {
		return false
	}
	return accept(compareValues(value, arg))
}

func isNull(v any) bool {
	return v == nil
}
