package persist

import (
	"fmt"
	"strings"
)

// Filter accumulates parameterized WHERE conditions joined with AND.
// A nil or empty filter matches all rows. Column names are validated;
// values always travel through ? placeholders.
type Filter struct {
	conds []string
	args  []any
	err   error
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// JSONField returns a column expression selecting a top-level field from the
// data column of a JSON persistence table. The field name must be a plain
// identifier.
func JSONField(name string) string {
	return "json_extract(data, '$." + name + "')"
}

func (f *Filter) cond(col, op string, v any) *Filter {
	if f.err != nil {
		return f
	}
	if !isColumnExpr(col) {
		f.err = fmt.Errorf("invalid filter column %q", col)
		return f
	}
	f.conds = append(f.conds, col+" "+op+" ?")
	f.args = append(f.args, v)
	return f
}

// Eq adds "col = value".
func (f *Filter) Eq(col string, v any) *Filter { return f.cond(col, "=", v) }

// Ne adds "col != value".
func (f *Filter) Ne(col string, v any) *Filter { return f.cond(col, "!=", v) }

// Gt adds "col > value".
func (f *Filter) Gt(col string, v any) *Filter { return f.cond(col, ">", v) }

// Gte adds "col >= value".
func (f *Filter) Gte(col string, v any) *Filter { return f.cond(col, ">=", v) }

// Lt adds "col < value".
func (f *Filter) Lt(col string, v any) *Filter { return f.cond(col, "<", v) }

// Lte adds "col <= value".
func (f *Filter) Lte(col string, v any) *Filter { return f.cond(col, "<=", v) }

// Like adds "col LIKE pattern". The caller supplies any % wildcards.
func (f *Filter) Like(col, pattern string) *Filter { return f.cond(col, "LIKE", pattern) }

// In adds "col IN (...)". An empty value list matches nothing.
func (f *Filter) In(col string, values ...any) *Filter {
	if f.err != nil {
		return f
	}
	if !isColumnExpr(col) {
		f.err = fmt.Errorf("invalid filter column %q", col)
		return f
	}
	if len(values) == 0 {
		f.conds = append(f.conds, "1=0")
		return f
	}
	f.conds = append(f.conds, col+" IN ("+placeholders(len(values))+")")
	f.args = append(f.args, values...)
	return f
}

// IsNull adds "col IS NULL".
func (f *Filter) IsNull(col string) *Filter {
	if f.err != nil {
		return f
	}
	if !isColumnExpr(col) {
		f.err = fmt.Errorf("invalid filter column %q", col)
		return f
	}
	f.conds = append(f.conds, col+" IS NULL")
	return f
}

// Raw adds a hand-written condition with its placeholder arguments. The
// fragment is trusted input; never interpolate user data into it.
func (f *Filter) Raw(cond string, args ...any) *Filter {
	f.conds = append(f.conds, "("+cond+")")
	f.args = append(f.args, args...)
	return f
}

// clause renders the WHERE body and its arguments. An empty filter renders
// as "1=1" so callers can always append it after WHERE. A filter that saw
// an invalid column must surface that error, never fall through to the
// match-all clause.
func (f *Filter) clause() (string, []any, error) {
	if f == nil {
		return "1=1", nil, nil
	}
	if f.err != nil {
		return "", nil, f.err
	}
	if len(f.conds) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(f.conds, " AND "), f.args, nil
}
