package filter

import (
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/rpattn/polyrel/internal/domain"
)

// MatchFilter reports whether entity satisfies every entry of tree. Keys name
// attributes (dotted keys address nested attributes), and values are literals,
// operator maps, or sub-trees applied to the attribute's object. $and, $or and
// $not combine sub-trees.
func MatchFilter(entity map[string]any, tree domain.FilterTree) bool {
	return matchValue(entity, tree)
}

func matchValue(value, cond any) bool {
	tree, ok := domain.AsFilterTree(cond)
	if !ok {
		return equal(value, cond)
	}
	for key, sub := range tree {
		if !matchEntry(value, key, sub) {
			return false
		}
	}
	return true
}

func matchEntry(value any, key string, cond any) bool {
	switch {
	case key == domain.OpAnd:
		items, ok := sequence(cond)
		if !ok {
			return matchValue(value, cond)
		}
		for _, item := range items {
			if !matchValue(value, item) {
				return false
			}
		}
		return true
	case key == domain.OpOr:
		items, ok := sequence(cond)
		if !ok {
			return matchValue(value, cond)
		}
		if len(items) == 0 {
			return true
		}
		for _, item := range items {
			if matchValue(value, item) {
				return true
			}
		}
		return false
	case key == domain.OpNot:
		return !matchValue(value, cond)
	case domain.IsOperatorKey(key):
		return evaluate(key, value, cond)
	}

	// A relation holding several entities matches when any of them does.
	if items, ok := sequence(value); ok {
		for _, item := range items {
			if matchEntry(item, key, cond) {
				return true
			}
		}
		return false
	}

	object, _ := value.(map[string]any)
	return matchValue(lookup(object, key), cond)
}

// lookup reads key from object. A key holding dots that is not itself an
// attribute is resolved as a path through nested objects.
func lookup(object map[string]any, key string) any {
	if object == nil {
		return nil
	}
	if v, ok := object[key]; ok || !strings.Contains(key, ".") {
		return v
	}
	x := jp.R()
	for _, part := range strings.Split(key, ".") {
		x = x.C(part)
	}
	if found := x.Get(object); len(found) > 0 {
		return found[0]
	}
	return nil
}
