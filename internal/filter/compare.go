package filter

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/polyrel/internal/domain"
)

// numberOf returns v as a float64 when it is a numeric Go value. Strings are
// not numbers here: equality is strict.
func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// looseNumber also accepts numeric strings, for ordering comparisons.
func looseNumber(v any) (float64, bool) {
	if n, ok := numberOf(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// equal is strict equality with numeric normalization, so a decoded JSON 5
// equals an int 5 but never the string "5".
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aNum := numberOf(a)
	bn, bNum := numberOf(b)
	if aNum || bNum {
		return aNum && bNum && an == bn
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

type cmpKind int

const (
	cmpNumber cmpKind = iota
	cmpTemporal
	cmpString
)

type cmpVal struct {
	kind cmpKind
	num  float64
	t    time.Time
	s    string
}

var temporalLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func normalizeForCompare(v any) cmpVal {
	if t, ok := v.(time.Time); ok {
		return cmpVal{kind: cmpTemporal, t: t, s: t.Format(time.RFC3339Nano)}
	}
	if n, ok := looseNumber(v); ok {
		return cmpVal{kind: cmpNumber, num: n}
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range temporalLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return cmpVal{kind: cmpTemporal, t: t, s: s}
			}
		}
		return cmpVal{kind: cmpString, s: s}
	}
	return cmpVal{kind: cmpString, s: domain.Stringify(v)}
}

// compareValues orders two non-nil values: numerically when both are numbers,
// chronologically when both are timestamps, otherwise as strings.
func compareValues(a, b any) int {
	av := normalizeForCompare(a)
	bv := normalizeForCompare(b)

	if av.kind == cmpNumber && bv.kind == cmpNumber {
		switch {
		case av.num < bv.num:
			return -1
		case av.num > bv.num:
			return 1
		default:
			return 0
		}
	}

	if av.kind == cmpTemporal && bv.kind == cmpTemporal {
		switch {
		case av.t.Before(bv.t):
			return -1
		case av.t.After(bv.t):
			return 1
		default:
			return 0
		}
	}

	as, bs := av.s, bv.s
	if av.kind == cmpNumber {
		as = domain.Stringify(a)
	}
	if bv.kind == cmpNumber {
		bs = domain.Stringify(b)
	}
	return strings.Compare(as, bs)
}

// sequence returns the elements of v when v is a slice or array.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
