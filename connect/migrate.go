package connect

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration is one versioned schema step for a named component. Versions
// within a component must be unique and are applied in the order given.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Migrate runs pending migrations for the named component. Already-applied
// versions (tracked in the shared _migrations table) are skipped. Each
// migration runs in its own transaction together with its bookkeeping row,
// so a failed step leaves no partial state.
func (c *Connection) Migrate(ctx context.Context, component string, migrations []Migration) error {
	if c.DB() == nil {
		return fmt.Errorf("migrate %q: %w", component, ErrNotOpen)
	}
	if err := c.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range migrations {
		applied, err := c.isApplied(ctx, component, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := c.apply(ctx, component, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
		c.logger.Info("migration applied",
			zap.String("component", component), zap.Int("version", m.Version))
	}
	return nil
}

func (c *Connection) ensureMigrationsTable(ctx context.Context) error {
	var err error
	c.migrationsOnce.Do(func() {
		_, err = c.DB().ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS _migrations (
				component   TEXT    NOT NULL,
				version     INTEGER NOT NULL,
				description TEXT    NOT NULL,
				applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (component, version)
			)
		`)
	})
	return err
}

func (c *Connection) isApplied(ctx context.Context, component string, version int) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM _migrations WHERE component = ? AND version = ?",
		component, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s/%d: %w", component, version, err)
	}
	return count > 0, nil
}

func (c *Connection) apply(ctx context.Context, component string, m Migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _migrations (component, version, description) VALUES (?, ?, ?)",
		component, m.Version, m.Description,
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
