package rowparse

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
)

// Row is one decoded record, index-aligned with the RowTypeSpec that
// produced it.
type Row []any

// String renders the row as its values joined by commas.
func (r Row) String() string {
	return strings.Join(r.Strings(), ",")
}

// Strings renders each value with fmt.Sprint.
func (r Row) Strings() []string {
	return lo.Map(r, func(v any, _ int) string {
		return fmt.Sprint(v)
	})
}

// RowTypeSpec lists the column types of a row, one descriptor per column.
type RowTypeSpec []*TypeDescriptor

// RowTypeOf resolves one descriptor per column type without hints. It is
// sufficient for non-generic types and for generic types implementing
// Generic.
func RowTypeOf(types ...reflect.Type) (RowTypeSpec, error) {
	spec := make(RowTypeSpec, len(types))
	for i, t := range types {
		desc, err := Resolve(t)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		spec[i] = desc
	}
	return spec, nil
}

// String renders the spec as a bracketed list of column types.
func (s RowTypeSpec) String() string {
	return "(" + strings.Join(lo.Map(s, func(d *TypeDescriptor, _ int) string {
		return d.String()
	}), ", ") + ")"
}

// Equal reports whether both specs describe the same columns.
func (s RowTypeSpec) Equal(other RowTypeSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}
