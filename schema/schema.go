// Package schema turns declarative YAML table and index definitions into
// "create if not exists" DDL. It creates what is missing and never alters
// or drops what already exists; anything beyond that belongs in a
// versioned migration.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/stratum/connect"
)

// Column describes one table column.
type Column struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	PrimaryKey bool   `yaml:"primary_key"`
	NotNull    bool   `yaml:"not_null"`
	Default    string `yaml:"default"`
}

// Index describes a single- or multi-column index.
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
}

// Table describes one table and its indexes.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
	Indexes []Index  `yaml:"indexes"`
}

// catalogFile is the top-level structure of the YAML document.
type catalogFile struct {
	Tables []Table `yaml:"tables"`
}

// Catalog provides lazy-parsed access to a YAML schema definition.
// Suitable for go:embed'ed schema files.
type Catalog struct {
	raw    []byte
	once   sync.Once
	tables []Table
	err    error
}

// Load creates a Catalog over raw YAML. Parsing happens on first access.
func Load(raw []byte) *Catalog {
	return &Catalog{raw: raw}
}

// Tables returns a copy of the parsed table definitions.
func (c *Catalog) Tables() ([]Table, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	cp := make([]Table, len(c.tables))
	copy(cp, c.tables)
	return cp, nil
}

// load parses and validates the YAML definition.
func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(c.raw, &f); err != nil {
		c.err = fmt.Errorf("schema: parse yaml: %w", err)
		return
	}
	for _, t := range f.Tables {
		if err := validateTable(t); err != nil {
			c.err = fmt.Errorf("schema: %w", err)
			return
		}
	}
	c.tables = f.Tables
}

// SQL renders the catalog as CREATE TABLE IF NOT EXISTS and CREATE INDEX
// IF NOT EXISTS statements, tables first.
func (c *Catalog) SQL() ([]string, error) {
	tables, err := c.Tables()
	if err != nil {
		return nil, err
	}
	var stmts []string
	for _, t := range tables {
		stmts = append(stmts, createTableSQL(t))
		for _, idx := range t.Indexes {
			stmts = append(stmts, createIndexSQL(t.Name, idx))
		}
	}
	return stmts, nil
}

// Apply executes the catalog's DDL against the database.
func (c *Catalog) Apply(ctx context.Context, db *sql.DB) error {
	stmts, err := c.SQL()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Migration adapts the catalog to a versioned migration step.
func (c *Catalog) Migration(version int, description string) connect.Migration {
	return connect.Migration{
		Version:     version,
		Description: description,
		Up: func(tx *sql.Tx) error {
			stmts, err := c.SQL()
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func validateTable(t Table) error {
	if !isIdentifier(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	for _, col := range t.Columns {
		if !isIdentifier(col.Name) {
			return fmt.Errorf("table %s: invalid column name %q", t.Name, col.Name)
		}
		if col.Type != "" && !isType(col.Type) {
			return fmt.Errorf("table %s: invalid column type %q", t.Name, col.Type)
		}
	}
	for _, idx := range t.Indexes {
		if !isIdentifier(idx.Name) {
			return fmt.Errorf("table %s: invalid index name %q", t.Name, idx.Name)
		}
		if len(idx.Columns) == 0 {
			return fmt.Errorf("table %s: index %s has no columns", t.Name, idx.Name)
		}
		for _, col := range idx.Columns {
			if !isIdentifier(col) {
				return fmt.Errorf("table %s: index %s: invalid column %q", t.Name, idx.Name, col)
			}
		}
	}
	return nil
}

func createTableSQL(t Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.Name)
	b.WriteString(" (")
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		typ := col.Type
		if typ == "" {
			typ = "TEXT"
		}
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(typ))
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(literal(col.Default))
		}
	}
	b.WriteByte(')')
	return b.String()
}

func createIndexSQL(table string, idx Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)",
		kind, idx.Name, table, strings.Join(idx.Columns, ", "))
}

// literal renders a default value: bare keywords and numbers pass through,
// everything else becomes a quoted string.
func literal(v string) string {
	switch strings.ToUpper(v) {
	case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "NULL", "TRUE", "FALSE":
		return strings.ToUpper(v)
	}
	if isNumber(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r == '-' && i == 0:
		case r == '.' && !dot:
			dot = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// isIdentifier mirrors the persist package's identifier rule:
// [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isType accepts SQLite type names, optionally parameterized like
// VARCHAR(64).
func isType(s string) bool {
	base := s
	if i := strings.IndexByte(s, '('); i > 0 && strings.HasSuffix(s, ")") {
		for _, r := range s[i+1 : len(s)-1] {
			if r < '0' || r > '9' {
				return false
			}
		}
		base = s[:i]
	}
	for _, r := range base {
		ok := r == ' ' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return false
		}
	}
	return base != ""
}
