package persist

import "fmt"

// Row is the subset of *sql.Row and *sql.Rows a scan function needs.
type Row interface {
	Scan(dest ...any) error
}

// Definition describes how an entity type maps onto a table: the column
// list, how a row scans into the entity, and how the entity flattens back
// into column values. Scan and Values must agree with Columns in order and
// length.
type Definition[T any] struct {
	// Table is the table name.
	Table string

	// Columns lists every column, in the order Scan reads and Values writes.
	Columns []string

	// Scan reads one row into an entity.
	Scan func(row Row) (T, error)

	// Values flattens an entity into column values, aligned with Columns.
	Values func(entity *T) []any

	// IDColumn names the primary-key column for identifiable persistence.
	// Defaults to "id". Must appear in Columns.
	IDColumn string

	// ID and SetID give identifiable persistence access to the entity's
	// string ID. Required by NewIdentifiable, ignored otherwise.
	ID    func(entity *T) string
	SetID func(entity *T, id string)

	// SortColumns whitelists sort keys for paged queries, mapping the
	// externally visible key to a column name. Unknown keys fall back to
	// DefaultSort.
	SortColumns map[string]string

	// DefaultSort is the column used when no (or an unknown) sort key is
	// given. Defaults to IDColumn.
	DefaultSort string
}

// validate checks identifiers and required fields, and fills defaults.
func (d *Definition[T]) validate() error {
	if err := validateIdentifier("table name", d.Table); err != nil {
		return err
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("table %s: no columns defined", d.Table)
	}
	for _, c := range d.Columns {
		if err := validateIdentifier("column name", c); err != nil {
			return fmt.Errorf("table %s: %w", d.Table, err)
		}
	}
	if d.Scan == nil || d.Values == nil {
		return fmt.Errorf("table %s: Scan and Values are required", d.Table)
	}
	if d.IDColumn == "" {
		d.IDColumn = "id"
	}
	for _, m := range d.SortColumns {
		if err := validateIdentifier("sort column", m); err != nil {
			return fmt.Errorf("table %s: %w", d.Table, err)
		}
	}
	if d.DefaultSort == "" {
		d.DefaultSort = d.IDColumn
	}
	if err := validateIdentifier("sort column", d.DefaultSort); err != nil {
		return fmt.Errorf("table %s: %w", d.Table, err)
	}
	return nil
}

// sortColumn resolves an external sort key to a column name, falling back
// to the default.
func (d *Definition[T]) sortColumn(key string) string {
	if key != "" {
		if col, ok := d.SortColumns[key]; ok {
			return col
		}
	}
	return d.DefaultSort
}

// hasColumn reports whether the definition contains the named column.
func (d *Definition[T]) hasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// nonIDColumns returns Columns minus the ID column, with the matching
// value indexes, for UPDATE statements.
func (d *Definition[T]) nonIDColumns() (cols []string, idx []int) {
	for i, c := range d.Columns {
		if c == d.IDColumn {
			continue
		}
		cols = append(cols, c)
		idx = append(idx, i)
	}
	return cols, idx
}
