package store

import (
	"fmt"
	"reflect"
	"regexp"
)

// Op is a filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query to documents whose Field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFilters rejects filters on field names that are not plain identifiers
// or that use an unknown operator.
func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		if f.Op != OpEqual && f.Op != OpArrayContains {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return nil
}

// Matches reports whether doc satisfies every filter.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		var v any
		if f.Field == FieldID {
			v = doc.ID()
		} else {
			v = doc[f.Field]
		}
		switch f.Op {
		case OpEqual:
			if !valuesEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			if !containsValue(asSlice(v), f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(items []any, v any) bool {
	for _, item := range items {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
