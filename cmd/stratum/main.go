// Command stratum is a maintenance tool for stratum SQLite databases:
// cold backup and restore, schema inspection, and vacuuming.
package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: stratum <command> [flags]

Commands:
  backup   create a tar.gz backup of the database
  restore  restore a database from a backup archive
  inspect  list tables, row counts, and applied migrations
  vacuum   checkpoint the WAL and vacuum the database

Run "stratum <command> -h" for command flags.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "backup":
		runBackup(os.Args[2:])
	case "restore":
		runRestore(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "vacuum":
		runVacuum(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}
