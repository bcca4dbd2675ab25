package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/stratum/connect"
)

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	db := fs.String("db", "", "path to the database file")
	configFile := fs.String("config", "", "config file with a components.sqlite section")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := connectionConfig(*db, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
	cfg.Set("read_only", true)

	ctx := context.Background()
	conn := connect.New()
	if err := conn.Init(cfg, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
	if err := conn.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := inspect(ctx, conn); err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
}

// connectionConfig builds the connection settings from flags: an explicit
// -db path wins, otherwise the config file's components.sqlite subtree is
// used.
func connectionConfig(db, configFile string) (*viper.Viper, error) {
	if db != "" {
		cfg := viper.New()
		cfg.Set("path", db)
		return cfg, nil
	}
	if configFile == "" {
		return nil, fmt.Errorf("either -db or -config is required")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := v.Sub("components.sqlite")
	if cfg == nil {
		return nil, fmt.Errorf("config has no components.sqlite section")
	}
	return cfg, nil
}

func inspect(ctx context.Context, conn *connect.Connection) error {
	db := conn.DB()

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating tables: %w", err)
	}

	fmt.Printf("Database: %s\n\n", conn.Path())
	fmt.Printf("%-32s %10s\n", "TABLE", "ROWS")
	for _, t := range tables {
		var count int
		// Table names come from sqlite_master, not user input.
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&count); err != nil {
			return fmt.Errorf("counting %s: %w", t, err)
		}
		fmt.Printf("%-32s %10d\n", t, count)
	}

	return printMigrations(ctx, conn)
}

func printMigrations(ctx context.Context, conn *connect.Connection) error {
	rows, err := conn.DB().QueryContext(ctx,
		`SELECT component, version, description, applied_at FROM _migrations ORDER BY component, version`)
	if err != nil {
		// No migrations table means no migrations have run; not an error.
		return nil
	}
	defer rows.Close()

	fmt.Printf("\n%-16s %8s  %-40s %s\n", "COMPONENT", "VERSION", "DESCRIPTION", "APPLIED")
	for rows.Next() {
		var component, description, appliedAt string
		var version int
		if err := rows.Scan(&component, &version, &description, &appliedAt); err != nil {
			return fmt.Errorf("scanning migration row: %w", err)
		}
		fmt.Printf("%-16s %8d  %-40s %s\n", component, version, description, appliedAt)
	}
	return rows.Err()
}
