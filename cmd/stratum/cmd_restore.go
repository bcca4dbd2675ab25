package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/HerbHall/stratum/backup"
)

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	input := fs.String("input", "", "path to the backup archive (required)")
	dataDir := fs.String("data-dir", ".", "directory to restore into")
	force := fs.Bool("force", false, "replace files that already exist")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	if err := backup.Restore(context.Background(), *input, *dataDir, *force); err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Restored backup into %s\n", *dataDir)
}
