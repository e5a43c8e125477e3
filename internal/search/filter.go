package search

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter builds a Meilisearch filter expression from structured
// constraints. Clauses are emitted in the order they were added and
// joined with AND; multi-value equality is OR-ed and parenthesized
// per field. Values containing a double quote are rejected at Build
// time because they would break the expression syntax.
type Filter struct {
	clauses []clause
}

type clauseKind int

const (
	clauseEq clauseKind = iota
	clauseIn
	clauseRange
)

type clause struct {
	kind   clauseKind
	field  string
	value  any
	values []any
	min    *float64
	max    *float64
}

func NewFilter() *Filter {
	return &Filter{}
}

// Eq adds an equality constraint on field.
func (f *Filter) Eq(field string, value any) *Filter {
	f.clauses = append(f.clauses, clause{kind: clauseEq, field: field, value: value})
	return f
}

// In adds an OR-ed equality constraint: the field must match one of values.
func (f *Filter) In(field string, values ...any) *Filter {
	f.clauses = append(f.clauses, clause{kind: clauseIn, field: field, values: values})
	return f
}

// Range adds a numeric bound constraint. Either bound may be nil.
func (f *Filter) Range(field string, min, max *float64) *Filter {
	f.clauses = append(f.clauses, clause{kind: clauseRange, field: field, min: min, max: max})
	return f
}

// Empty reports whether no constraints have been added.
func (f *Filter) Empty() bool {
	return len(f.clauses) == 0
}

// Build renders the filter expression. An empty filter renders to ""
// (unrestricted search).
func (f *Filter) Build() (string, error) {
	if len(f.clauses) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(f.clauses))
	for _, c := range f.clauses {
		if strings.ContainsAny(c.field, `"`) {
			return "", fmt.Errorf("filter field %q contains a quote character", c.field)
		}

		switch c.kind {
		case clauseEq:
			v, err := formatValue(c.value)
			if err != nil {
				return "", fmt.Errorf("field %s: %w", c.field, err)
			}
			parts = append(parts, fmt.Sprintf("%s = %s", c.field, v))

		case clauseIn:
			if len(c.values) == 0 {
				continue
			}
			ors := make([]string, 0, len(c.values))
			for _, raw := range c.values {
				v, err := formatValue(raw)
				if err != nil {
					return "", fmt.Errorf("field %s: %w", c.field, err)
				}
				ors = append(ors, fmt.Sprintf("%s = %s", c.field, v))
			}
			if len(ors) == 1 {
				parts = append(parts, ors[0])
			} else {
				parts = append(parts, "("+strings.Join(ors, " OR ")+")")
			}

		case clauseRange:
			if c.min != nil {
				parts = append(parts, fmt.Sprintf("%s >= %s", c.field, formatNumber(*c.min)))
			}
			if c.max != nil {
				parts = append(parts, fmt.Sprintf("%s <= %s", c.field, formatNumber(*c.max)))
			}
		}
	}

	return strings.Join(parts, " AND "), nil
}

func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, `"`) {
			return "", fmt.Errorf("value %q contains a quote character", val)
		}
		return strconv.Quote(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return formatNumber(val), nil
	case float32:
		return formatNumber(float64(val)), nil
	default:
		return "", fmt.Errorf("unsupported filter value type %T", v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
