package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identifiable extends Persistence with CRUD keyed on a string ID column.
// Entities created without an ID get a generated UUID.
type Identifiable[T any] struct {
	*Persistence[T]
}

// NewIdentifiable creates an identifiable persistence. The definition must
// provide ID and SetID accessors, and IDColumn must be one of Columns.
func NewIdentifiable[T any](def Definition[T], opts ...Option[T]) (*Identifiable[T], error) {
	base, err := New(def, opts...)
	if err != nil {
		return nil, err
	}
	d := &base.def
	if d.ID == nil || d.SetID == nil {
		return nil, fmt.Errorf("table %s: ID and SetID are required", d.Table)
	}
	if !d.hasColumn(d.IDColumn) {
		return nil, fmt.Errorf("table %s: ID column %q not in column list", d.Table, d.IDColumn)
	}
	return &Identifiable[T]{Persistence: base}, nil
}

// GetOneByID returns the entity with the given ID, or ErrNotFound.
func (p *Identifiable[T]) GetOneByID(ctx context.Context, id string) (entity *T, err error) {
	start := time.Now()
	defer func() { p.observe("get_one_by_id", start, err) }()

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		columnList(p.def.Columns), p.def.Table, p.def.IDColumn), id)

	item, err := p.def.Scan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s %q: %w", p.def.Table, id, err)
	}
	return &item, nil
}

// GetListByIDs returns the entities whose IDs appear in ids. Missing IDs
// are skipped; an empty list executes no SQL.
func (p *Identifiable[T]) GetListByIDs(ctx context.Context, ids []string) (items []T, err error) {
	start := time.Now()
	defer func() { p.observe("get_list_by_ids", start, err) }()

	if len(ids) == 0 {
		return []T{}, nil
	}
	db, err := p.db()
	if err != nil {
		return nil, err
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		columnList(p.def.Columns), p.def.Table, p.def.IDColumn, placeholders(len(ids)))
	return p.queryList(ctx, db, query, args)
}

// Create inserts a new entity, assigning a UUID when its ID is empty.
// A duplicate ID yields ErrAlreadyExists.
func (p *Identifiable[T]) Create(ctx context.Context, entity *T) error {
	if p.def.ID(entity) == "" {
		p.def.SetID(entity, uuid.New().String())
	}
	return p.Persistence.Create(ctx, entity)
}

// Set inserts the entity or, when its ID already exists, overwrites every
// other column. The entity must carry an ID.
func (p *Identifiable[T]) Set(ctx context.Context, entity *T) (err error) {
	start := time.Now()
	defer func() { p.observe("set", start, err) }()

	if p.def.ID(entity) == "" {
		p.def.SetID(entity, uuid.New().String())
	}
	db, err := p.db()
	if err != nil {
		return err
	}
	cols, _ := p.def.nonIDColumns()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		p.def.Table, columnList(p.def.Columns), placeholders(len(p.def.Columns)),
		p.def.IDColumn, excludedSetClause(cols))
	if _, err := db.ExecContext(ctx, query, p.def.Values(entity)...); err != nil {
		return fmt.Errorf("set in %s: %w", p.def.Table, err)
	}
	p.logger.Debug("set entity", zap.String("table", p.def.Table), zap.String("id", p.def.ID(entity)))
	return nil
}

// Update overwrites every non-ID column of an existing entity. Returns
// ErrNotFound when no row carries the entity's ID.
func (p *Identifiable[T]) Update(ctx context.Context, entity *T) (err error) {
	start := time.Now()
	defer func() { p.observe("update", start, err) }()

	db, err := p.db()
	if err != nil {
		return err
	}
	cols, idx := p.def.nonIDColumns()
	values := p.def.Values(entity)

	args := make([]any, 0, len(cols)+1)
	for _, i := range idx {
		args = append(args, values[i])
	}
	args = append(args, p.def.ID(entity))

	res, err := db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		p.def.Table, setClause(cols), p.def.IDColumn), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", p.def.Table, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePartially sets only the given columns and returns the updated
// entity. Unknown columns and the ID column are rejected before any write.
func (p *Identifiable[T]) UpdatePartially(ctx context.Context, id string, updates map[string]any) (entity *T, err error) {
	start := time.Now()
	defer func() { p.observe("update_partially", start, err) }()

	if len(updates) == 0 {
		return nil, fmt.Errorf("update %s %q: no columns to update", p.def.Table, id)
	}
	cols := sortedKeys(updates)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if c == p.def.IDColumn || !p.def.hasColumn(c) {
			return nil, fmt.Errorf("update %s %q: unknown column %q", p.def.Table, id, c)
		}
		args = append(args, updates[c])
	}
	args = append(args, id)

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		p.def.Table, setClause(cols), p.def.IDColumn), args...)
	if err != nil {
		return nil, fmt.Errorf("update %s %q: %w", p.def.Table, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.GetOneByID(ctx, id)
}

// DeleteByID removes the entity with the given ID and returns it.
func (p *Identifiable[T]) DeleteByID(ctx context.Context, id string) (entity *T, err error) {
	start := time.Now()
	defer func() { p.observe("delete_by_id", start, err) }()

	entity, err = p.GetOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	db, err := p.db()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		p.def.Table, p.def.IDColumn), id); err != nil {
		return nil, fmt.Errorf("delete %s %q: %w", p.def.Table, id, err)
	}
	p.logger.Debug("deleted entity", zap.String("table", p.def.Table), zap.String("id", id))
	return entity, nil
}

// DeleteByIDs removes every entity whose ID appears in ids. IDs without a
// row are ignored; an empty list executes no SQL.
func (p *Identifiable[T]) DeleteByIDs(ctx context.Context, ids []string) (err error) {
	start := time.Now()
	defer func() { p.observe("delete_by_ids", start, err) }()

	if len(ids) == 0 {
		return nil
	}
	db, err := p.db()
	if err != nil {
		return err
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		p.def.Table, p.def.IDColumn, placeholders(len(ids))), args...); err != nil {
		return fmt.Errorf("delete from %s: %w", p.def.Table, err)
	}
	return nil
}
