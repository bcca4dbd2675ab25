package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // SQLite driver
)

func runVacuum(args []string) {
	fs := flag.NewFlagSet("vacuum", flag.ExitOnError)
	dbPath := fs.String("db", "stratum.db", "path to the database file")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "vacuum failed: database file not found: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vacuum failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "vacuum failed: WAL checkpoint: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		fmt.Fprintf(os.Stderr, "vacuum failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vacuum complete: %s\n", *dbPath)
}
