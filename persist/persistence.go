package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/stratum/connect"
	"github.com/HerbHall/stratum/metrics"
)

// Persistence provides filter- and page-based access to a single table.
// It participates in the component lifecycle: Init captures config, Open
// resolves a connection (creating a private one when none was injected)
// and ensures the table's schema, Close releases a private connection.
type Persistence[T any] struct {
	def      Definition[T]
	conn     *connect.Connection
	ownsConn bool
	config   *viper.Viper
	logger   *zap.Logger
	rec      *metrics.Recorder
	schema   []string
}

// Option configures a Persistence at construction time.
type Option[T any] func(*Persistence[T])

// WithConnection injects a shared connection. The caller is responsible
// for its lifecycle; without this option Open creates a private one from
// the component's config.
func WithConnection[T any](conn *connect.Connection) Option[T] {
	return func(p *Persistence[T]) { p.conn = conn }
}

// WithLogger sets the logger. Init's logger, when non-nil, takes priority.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(p *Persistence[T]) { p.logger = logger }
}

// WithMetrics wires a metrics recorder. A nil recorder records nothing.
func WithMetrics[T any](rec *metrics.Recorder) Option[T] {
	return func(p *Persistence[T]) { p.rec = rec }
}

// WithSchema appends DDL statements executed at Open. Statements should be
// idempotent ("CREATE TABLE IF NOT EXISTS ...").
func WithSchema[T any](stmts ...string) Option[T] {
	return func(p *Persistence[T]) { p.schema = append(p.schema, stmts...) }
}

// New creates a Persistence for the given definition.
func New[T any](def Definition[T], opts ...Option[T]) (*Persistence[T], error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	p := &Persistence[T]{
		def:    def,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the component by its table.
func (p *Persistence[T]) Name() string { return p.def.Table }

// Init captures the component's config subtree and logger. The config is
// only consulted when Open has to create a private connection.
func (p *Persistence[T]) Init(config *viper.Viper, logger *zap.Logger) error {
	p.config = config
	if logger != nil {
		p.logger = logger
	}
	return nil
}

// Open resolves the connection and applies the component's schema DDL.
func (p *Persistence[T]) Open(ctx context.Context) error {
	if p.conn == nil {
		p.conn = connect.New()
		if err := p.conn.Init(p.config, p.logger); err != nil {
			return fmt.Errorf("table %s: init connection: %w", p.def.Table, err)
		}
		p.ownsConn = true
	}
	if p.ownsConn {
		if err := p.conn.Open(ctx); err != nil {
			return fmt.Errorf("table %s: open connection: %w", p.def.Table, err)
		}
	}

	db := p.conn.DB()
	if db == nil {
		return fmt.Errorf("table %s: %w", p.def.Table, ErrNotOpen)
	}
	for _, stmt := range p.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("table %s: ensure schema: %w", p.def.Table, err)
		}
	}
	return nil
}

// Close closes a privately owned connection. Shared connections are left
// to their owner.
func (p *Persistence[T]) Close() error {
	if p.ownsConn && p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Connection returns the resolved connection, or nil before Open.
func (p *Persistence[T]) Connection() *connect.Connection { return p.conn }

// db returns the open handle or ErrNotOpen.
func (p *Persistence[T]) db() (*sql.DB, error) {
	if p.conn == nil {
		return nil, ErrNotOpen
	}
	db := p.conn.DB()
	if db == nil {
		return nil, ErrNotOpen
	}
	return db, nil
}

func (p *Persistence[T]) observe(op string, start time.Time, err error) {
	p.rec.Observe(p.def.Table, op, start, err)
}

// GetPage returns one page of entities matching the filter, plus the total
// count computed with the same WHERE clause.
func (p *Persistence[T]) GetPage(ctx context.Context, filter *Filter, opts PageOptions) (page *Page[T], err error) {
	start := time.Now()
	defer func() { p.observe("get_page", start, err) }()

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	where, args, err := filter.clause()
	if err != nil {
		return nil, err
	}
	opts = normalizePageOptions(opts)

	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+p.def.Table+" WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", p.def.Table, err)
	}

	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		columnList(p.def.Columns), p.def.Table, where, p.def.sortColumn(opts.SortBy), orderDir)

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, opts.Limit, opts.Offset)

	items, err := p.queryList(ctx, db, query, queryArgs)
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Total: total}, nil
}

// GetList returns all entities matching the filter, ordered by the
// definition's default sort column.
func (p *Persistence[T]) GetList(ctx context.Context, filter *Filter) (items []T, err error) {
	start := time.Now()
	defer func() { p.observe("get_list", start, err) }()

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	where, args, err := filter.clause()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s ASC",
		columnList(p.def.Columns), p.def.Table, where, p.def.DefaultSort)
	return p.queryList(ctx, db, query, args)
}

// GetCount returns the number of entities matching the filter.
func (p *Persistence[T]) GetCount(ctx context.Context, filter *Filter) (n int, err error) {
	start := time.Now()
	defer func() { p.observe("get_count", start, err) }()

	db, err := p.db()
	if err != nil {
		return 0, err
	}
	where, args, err := filter.clause()
	if err != nil {
		return 0, err
	}
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+p.def.Table+" WHERE "+where, args...,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", p.def.Table, err)
	}
	return n, nil
}

// GetOneRandom returns one random entity matching the filter, or
// ErrNotFound when nothing matches.
func (p *Persistence[T]) GetOneRandom(ctx context.Context, filter *Filter) (entity *T, err error) {
	start := time.Now()
	defer func() { p.observe("get_one_random", start, err) }()

	db, err := p.db()
	if err != nil {
		return nil, err
	}
	where, args, err := filter.clause()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY RANDOM() LIMIT 1",
		columnList(p.def.Columns), p.def.Table, where), args...)

	item, err := p.def.Scan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("random %s: %w", p.def.Table, err)
	}
	return &item, nil
}

// Create inserts a new entity.
func (p *Persistence[T]) Create(ctx context.Context, entity *T) (err error) {
	start := time.Now()
	defer func() { p.observe("create", start, err) }()

	db, err := p.db()
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.def.Table, columnList(p.def.Columns), placeholders(len(p.def.Columns)))
	if _, err := db.ExecContext(ctx, query, p.def.Values(entity)...); err != nil {
		if isConstraintViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create in %s: %w", p.def.Table, err)
	}
	p.logger.Debug("created entity", zap.String("table", p.def.Table))
	return nil
}

// DeleteByFilter removes all entities matching the filter and returns how
// many rows were deleted. An empty filter deletes everything.
func (p *Persistence[T]) DeleteByFilter(ctx context.Context, filter *Filter) (n int, err error) {
	start := time.Now()
	defer func() { p.observe("delete_by_filter", start, err) }()

	db, err := p.db()
	if err != nil {
		return 0, err
	}
	where, args, err := filter.clause()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+p.def.Table+" WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", p.def.Table, err)
	}
	rows, _ := res.RowsAffected()
	p.logger.Debug("deleted by filter", zap.String("table", p.def.Table), zap.Int64("rows", rows))
	return int(rows), nil
}

// Clear deletes every row. The table itself is kept.
func (p *Persistence[T]) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { p.observe("clear", start, err) }()

	db, err := p.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM "+p.def.Table); err != nil {
		return fmt.Errorf("clear %s: %w", p.def.Table, err)
	}
	p.logger.Debug("cleared table", zap.String("table", p.def.Table))
	return nil
}

// queryList runs a SELECT over the definition's columns and scans every row.
func (p *Persistence[T]) queryList(ctx context.Context, db *sql.DB, query string, args []any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.def.Table, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := p.def.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", p.def.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", p.def.Table, err)
	}
	return items, nil
}

// Compile-time lifecycle guards.
var (
	_ Component = (*Persistence[struct{}])(nil)
	_ Cleaner   = (*Persistence[struct{}])(nil)
)
