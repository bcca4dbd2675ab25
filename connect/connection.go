// Package connect wraps a single SQLite connection handle behind the
// component lifecycle: Init resolves the database location from config,
// Open establishes the handle and applies pragmas, Close releases it.
package connect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// DefaultPath is used when the config names no database file.
const DefaultPath = "stratum.db"

// ErrNotOpen is returned by operations that need an open handle.
var ErrNotOpen = errors.New("connection not open")

// Connection owns a single *sql.DB handle backed by modernc.org/sqlite.
// SQLite performs best with one write connection; WAL mode lets readers
// proceed concurrently. All calls funnel through that one handle.
type Connection struct {
	mu sync.Mutex

	path        string
	busyTimeout int
	cacheSize   int
	readOnly    bool

	db     *sql.DB
	logger *zap.Logger

	migrationsOnce sync.Once // _migrations table created once per open handle
}

// New returns an unconfigured connection. Call Init then Open before use.
func New() *Connection {
	return &Connection{logger: zap.NewNop()}
}

// Name identifies the connection to a component registry.
func (c *Connection) Name() string { return "sqlite" }

// Init resolves connection settings from the config subtree:
//
//	path:         database file, or ":memory:" (default "stratum.db")
//	busy_timeout: milliseconds to wait on a locked database (default 5000)
//	cache_size:   pragma cache_size value (default -20000)
//	read_only:    open the database read-only
func (c *Connection) Init(config *viper.Viper, logger *zap.Logger) error {
	if config == nil {
		config = viper.New()
	}
	if logger != nil {
		c.logger = logger
	}

	c.path = config.GetString("path")
	if c.path == "" {
		c.path = DefaultPath
	}
	c.busyTimeout = config.GetInt("busy_timeout")
	if c.busyTimeout <= 0 {
		c.busyTimeout = 5000
	}
	c.cacheSize = config.GetInt("cache_size")
	if c.cacheSize == 0 {
		c.cacheSize = -20000
	}
	c.readOnly = config.GetBool("read_only")
	return nil
}

// Open opens the database handle, verifies it, and applies pragmas.
// Opening an already-open connection is a no-op.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}
	if c.path == "" {
		// Init was skipped; fall back to defaults.
		c.path = DefaultPath
		c.busyTimeout = 5000
		c.cacheSize = -20000
	}

	if c.path != ":memory:" {
		if dir := filepath.Dir(c.path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create database directory %q: %w", dir, err)
			}
		}
	}

	dsn := c.path
	if c.readOnly {
		dsn = "file:" + c.path + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite %q: %w", c.path, err)
	}

	// Serialize all access onto one handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite %q: %w", c.path, err)
	}

	// modernc.org/sqlite takes pragmas as SQL statements, not DSN params.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", c.busyTimeout),
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA cache_size=%d", c.cacheSize),
	}
	if !c.readOnly {
		// Changing the journal mode writes to the database file.
		pragmas = append([]string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
		}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}

	c.db = db
	c.migrationsOnce = sync.Once{}
	c.logger.Info("sqlite connection opened", zap.String("path", c.path))
	return nil
}

// Close closes the database handle. Closing a closed connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.logger.Info("sqlite connection closed", zap.String("path", c.path))
	return err
}

// DB returns the underlying handle, or nil before Open / after Close.
func (c *Connection) DB() *sql.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Path returns the resolved database file path.
func (c *Connection) Path() string { return c.path }

// Tx executes fn within a transaction. The transaction is committed if fn
// returns nil, rolled back otherwise.
func (c *Connection) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db := c.DB()
	if db == nil {
		return fmt.Errorf("tx on %q: %w", c.path, ErrNotOpen)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}
