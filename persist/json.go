package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JSONPersistence stores entities as JSON documents in a two-column table
// (id TEXT PRIMARY KEY, data TEXT NOT NULL). Filters can address document
// fields through JSONField. Partial updates merge server-side with
// SQLite's json_patch.
type JSONPersistence[T any] struct {
	*Identifiable[T]
}

// jsonTableDDL renders the fixed schema of a JSON persistence table.
func jsonTableDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (id TEXT PRIMARY KEY, data TEXT NOT NULL)"
}

// NewJSON creates a JSON persistence over the named table. The id and
// setID accessors expose the entity's string ID, which is mirrored into
// the id column.
func NewJSON[T any](table string, id func(*T) string, setID func(*T, string), opts ...Option[T]) (*JSONPersistence[T], error) {
	if id == nil || setID == nil {
		return nil, fmt.Errorf("table %s: id accessors are required", table)
	}

	def := Definition[T]{
		Table:   table,
		Columns: []string{"id", "data"},
		Scan: func(row Row) (T, error) {
			var entity T
			var docID, data string
			if err := row.Scan(&docID, &data); err != nil {
				return entity, err
			}
			if err := json.Unmarshal([]byte(data), &entity); err != nil {
				return entity, fmt.Errorf("unmarshal document %q: %w", docID, err)
			}
			setID(&entity, docID)
			return entity, nil
		},
		Values: func(entity *T) []any {
			// Marshalability is checked by Create/Set before this runs.
			data, _ := json.Marshal(entity)
			return []any{id(entity), string(data)}
		},
		ID:    id,
		SetID: setID,
	}

	opts = append(opts, WithSchema[T](jsonTableDDL(table)))
	base, err := NewIdentifiable(def, opts...)
	if err != nil {
		return nil, err
	}
	return &JSONPersistence[T]{Identifiable: base}, nil
}

// checkMarshal rejects entities that cannot be marshalled before any SQL
// runs. The Values closure cannot return an error, so a bad entity would
// otherwise be written as an empty document.
func (p *JSONPersistence[T]) checkMarshal(entity *T) error {
	if _, err := json.Marshal(entity); err != nil {
		return fmt.Errorf("marshal document for %s: %w", p.def.Table, err)
	}
	return nil
}

// Create inserts the entity as a JSON document, assigning a UUID when its
// ID is empty. An unmarshalable entity is rejected up front.
func (p *JSONPersistence[T]) Create(ctx context.Context, entity *T) error {
	if err := p.checkMarshal(entity); err != nil {
		return err
	}
	return p.Identifiable.Create(ctx, entity)
}

// Set inserts or overwrites the entity's document. An unmarshalable entity
// is rejected up front.
func (p *JSONPersistence[T]) Set(ctx context.Context, entity *T) error {
	if err := p.checkMarshal(entity); err != nil {
		return err
	}
	return p.Identifiable.Set(ctx, entity)
}

// EnsureTable creates the document table if it doesn't exist. Open does
// this as well; EnsureTable covers callers managing schema explicitly.
func (p *JSONPersistence[T]) EnsureTable(ctx context.Context) error {
	db, err := p.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, jsonTableDDL(p.def.Table)); err != nil {
		return fmt.Errorf("ensure table %s: %w", p.def.Table, err)
	}
	return nil
}

// UpdatePartially merges the given fields into the stored document with
// json_patch and returns the updated entity. The id field cannot be
// patched.
func (p *JSONPersistence[T]) UpdatePartially(ctx context.Context, docID string, updates map[string]any) (entity *T, err error) {
	start := time.Now()
	defer func() { p.observe("update_partially", start, err) }()

	if len(updates) == 0 {
		return nil, fmt.Errorf("update %s %q: no fields to update", p.def.Table, docID)
	}
	if _, ok := updates["id"]; ok {
		return nil, fmt.Errorf("update %s %q: id cannot be patched", p.def.Table, docID)
	}
	patch, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("update %s %q: marshal patch: %w", p.def.Table, docID, err)
	}

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx,
		"UPDATE "+p.def.Table+" SET data = json_patch(data, ?) WHERE id = ?",
		string(patch), docID)
	if err != nil {
		return nil, fmt.Errorf("update %s %q: %w", p.def.Table, docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.GetOneByID(ctx, docID)
}
