package httpapi

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rpattn/polyrel/internal/domain"
)

// parseNested reads every parameter rooted at name using bracket syntax:
// name=v, name[a]=v, name[a][b][$eq]=v, name[0]=v. Objects whose keys are
// exactly 0..n-1 become sequences. It returns nil when the parameter is absent.
func parseNested(values url.Values, name string) any {
	var root any
	for key, vals := range values {
		path, ok := bracketPath(key, name)
		if !ok || len(vals) == 0 {
			continue
		}
		var leaf any = vals[0]
		if len(vals) > 1 {
			items := make([]any, len(vals))
			for i, v := range vals {
				items[i] = v
			}
			leaf = items
		}
		root = assign(root, path, leaf)
	}
	return listify(root)
}

// bracketPath splits "name[a][b]" into [a b]. A bare name yields an empty path.
func bracketPath(key, name string) ([]string, bool) {
	if key == name {
		return []string{}, true
	}
	if !strings.HasPrefix(key, name+"[") || !strings.HasSuffix(key, "]") {
		return nil, false
	}
	inner := key[len(name)+1 : len(key)-1]
	parts := strings.Split(inner, "][")
	for _, part := range parts {
		if strings.ContainsAny(part, "[]") {
			return nil, false
		}
	}
	return parts, true
}

func assign(node any, path []string, leaf any) any {
	if len(path) == 0 {
		return leaf
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[path[0]] = assign(m[path[0]], path[1:], leaf)
	return m
}

// listify turns index-keyed objects into sequences, recursively.
func listify(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	for k, v := range m {
		m[k] = listify(v)
	}

	indexes := make([]int, 0, len(m))
	for k := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return m
		}
		indexes = append(indexes, i)
	}
	if len(indexes) == 0 {
		return m
	}
	sort.Ints(indexes)
	for pos, i := range indexes {
		if pos != i {
			return m
		}
	}
	items := make([]any, len(indexes))
	for _, i := range indexes {
		items[i] = m[strconv.Itoa(i)]
	}
	return items
}

// parsePopulate reads the populate parameter. "true" and "false" leaves of a
// nested populate object are read as booleans.
func parsePopulate(values url.Values) domain.PopulateSpec {
	raw := parseNested(values, "populate")
	if m, ok := raw.(map[string]any); ok {
		raw = boolLeaves(m)
	}
	return domain.ParsePopulate(raw)
}

func boolLeaves(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			v[k] = boolLeaves(child)
		}
		return v
	case string:
		switch v {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return node
}

// parseFilters reads the filters parameter. Leaf strings under attributes
// declared as numbers or booleans are converted so they compare with stored
// values.
func parseFilters(values url.Values, ct domain.ContentType) domain.FilterTree {
	tree, ok := domain.AsFilterTree(parseNested(values, "filters"))
	if !ok {
		return nil
	}
	coerceTree(tree, ct)
	return tree
}

func coerceTree(tree domain.FilterTree, ct domain.ContentType) {
	for key, value := range tree {
		switch key {
		case domain.OpAnd, domain.OpOr:
			if items, ok := value.([]any); ok {
				for _, item := range items {
					if sub, ok := domain.AsFilterTree(item); ok {
						coerceTree(sub, ct)
					}
				}
			}
			continue
		case domain.OpNot:
			if sub, ok := domain.AsFilterTree(value); ok {
				coerceTree(sub, ct)
			}
			continue
		}
		attr, ok := ct.Attributes[key]
		if !ok {
			continue
		}
		tree[key] = coerceValue(value, attr.Type)
	}
}

func coerceValue(value any, attrType string) any {
	switch v := value.(type) {
	case string:
		return coerceScalar(v, attrType)
	case []any:
		for i, item := range v {
			v[i] = coerceValue(item, attrType)
		}
		return v
	case map[string]any:
		for op, arg := range v {
			// Flags of $null/$notNull are booleans regardless of the attribute.
			if op == domain.OpNull || op == domain.OpNotNull || !domain.IsOperatorKey(op) {
				continue
			}
			v[op] = coerceValue(arg, attrType)
		}
		return v
	}
	return value
}

func coerceScalar(s, attrType string) any {
	switch attrType {
	case "integer", "biginteger", "float", "decimal":
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case "boolean":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

// parsePagination reads pagination[page]/pagination[pageSize], falling back
// to the flat page/pageSize parameters.
func parsePagination(values url.Values) domain.Pagination {
	page := firstInt(values, "pagination[page]", "page")
	size := firstInt(values, "pagination[pageSize]", "pageSize")
	return domain.Pagination{Page: page, PageSize: size}.Normalize()
}

func firstInt(values url.Values, keys ...string) int {
	for _, key := range keys {
		if raw := strings.TrimSpace(values.Get(key)); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				return n
			}
		}
	}
	return 0
}
