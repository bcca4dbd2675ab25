// Package backup provides tar.gz-based cold backup and restore for a
// stratum SQLite database.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// Backup writes the database file, and optionally a config file, into a
// tar.gz archive at outputPath. Pending WAL frames are checkpointed into
// the main file first so the archived copy is self-contained. The database
// must not be open for writing elsewhere while the copy runs.
func Backup(_ context.Context, dbPath, configPath, outputPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("stat database: %w", err)
	}

	if err := flushWAL(dbPath); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	if err := tarFile(tw, dbPath, filepath.Base(dbPath)); err != nil {
		return fmt.Errorf("archive database: %w", err)
	}

	// A named config file that doesn't exist isn't an error; archive one
	// only when it's actually there.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := tarFile(tw, configPath, filepath.Base(configPath)); err != nil {
				return fmt.Errorf("archive config: %w", err)
			}
		}
	}

	return nil
}

// Restore extracts a backup archive into dataDir. Existing files are left
// untouched unless force is set. Stale -wal and -shm sidecars of any
// restored database file are removed so the restored snapshot is
// authoritative.
func Restore(_ context.Context, archivePath, dataDir string, force bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// Archives are written with flat base names; reject anything that
		// would escape the target directory.
		name := filepath.Base(filepath.Clean(hdr.Name))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return fmt.Errorf("unsafe archive entry %q", hdr.Name)
		}
		target := filepath.Join(dataDir, name)

		if _, err := os.Stat(target); err == nil && !force {
			return fmt.Errorf("%s already exists (use force to overwrite)", target)
		}

		if err := extractFile(tr, target, hdr.FileInfo().Mode()); err != nil {
			return fmt.Errorf("restoring %s: %w", name, err)
		}

		// A restored database snapshot must not be mixed with leftover
		// WAL state from a previous life.
		if strings.HasSuffix(name, ".db") {
			os.Remove(target + "-wal")
			os.Remove(target + "-shm")
		}
	}

	return nil
}

// flushWAL runs a TRUNCATE checkpoint over its own short-lived connection
// so the main database file holds every committed write.
func flushWAL(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// tarFile appends one file to the archive under the given flat name.
func tarFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

// extractFile writes one archive entry to disk.
func extractFile(r io.Reader, target string, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	//nolint:gosec // cold backups are trusted local archives
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
