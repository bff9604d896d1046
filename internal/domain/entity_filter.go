package domain

import "strings"

// FilterTree maps field names to a literal (equality), an operator map, or a
// nested FilterTree applied to the field's sub-object. The logical keys $and,
// $or and $not combine sub-trees.
type FilterTree map[string]any

// Comparison operators. Unknown operators are ignored by every evaluator.
const (
	OpEq           = "$eq"
	OpNe           = "$ne"
	OpContains     = "$contains"
	OpContainsi    = "$containsi"
	OpNotContains  = "$notContains"
	OpNotContainsi = "$notContainsi"
	OpStartsWith   = "$startsWith"
	OpEndsWith     = "$endsWith"
	OpIn           = "$in"
	OpNotIn        = "$notIn"
	OpLt           = "$lt"
	OpLte          = "$lte"
	OpGt           = "$gt"
	OpGte          = "$gte"
	OpNull         = "$null"
	OpNotNull      = "$notNull"
)

// Logical operators.
const (
	OpAnd = "$and"
	OpOr  = "$or"
	OpNot = "$not"
)

// IsLogicalOperator reports whether key combines sub-trees.
func IsLogicalOperator(key string) bool {
	return key == OpAnd || key == OpOr || key == OpNot
}

// IsOperatorKey reports whether key is an operator rather than a field name.
func IsOperatorKey(key string) bool {
	return strings.HasPrefix(key, "$")
}

// AsFilterTree returns v as a FilterTree when it is an object.
func AsFilterTree(v any) (FilterTree, bool) {
	switch t := v.(type) {
	case FilterTree:
		return t, true
	case map[string]any:
		return FilterTree(t), true
	}
	return nil, false
}

// IsOperatorMap reports whether v is an object holding at least one
// comparison operator, as opposed to a nested filter sub-tree.
func IsOperatorMap(v any) bool {
	tree, ok := AsFilterTree(v)
	if !ok {
		return false
	}
	for key := range tree {
		if IsOperatorKey(key) && !IsLogicalOperator(key) {
			return true
		}
	}
	return false
}

// Without returns a shallow copy of the tree minus the named keys.
func (t FilterTree) Without(keys ...string) FilterTree {
	drop := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}
	out := make(FilterTree, len(t))
	for key, value := range t {
		if _, skip := drop[key]; skip {
			continue
		}
		out[key] = value
	}
	return out
}
