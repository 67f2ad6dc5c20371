// Package backup takes point-in-time snapshots of the SQLite record store,
// prunes them with a tiered retention policy and restores them.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scrypster/lifecache/internal/storage/sqlite"
)

const (
	filePrefix = "lifecache-"
	fileSuffix = ".db"
	stampFmt   = "20060102-150405.000000"
)

// ErrCorrupt is returned when a snapshot fails SQLite's integrity check.
var ErrCorrupt = errors.New("snapshot failed integrity check")

// Snapshot describes one snapshot file.
type Snapshot struct {
	Path     string
	TakenAt  time.Time
	Size     int64
	Verified bool
	Duration time.Duration
}

// snapshotName returns the file name for a snapshot taken at t.
func snapshotName(t time.Time) string {
	return filePrefix + t.UTC().Format(stampFmt) + fileSuffix
}

// parseSnapshotName extracts the timestamp from a snapshot file name.
func parseSnapshotName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	t, err := time.Parse(stampFmt, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// listSnapshots returns the snapshots in dir, newest first. Files that do not
// follow the snapshot naming scheme are ignored.
func listSnapshots(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		takenAt, ok := parseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{
			Path:    filepath.Join(dir, entry.Name()),
			TakenAt: takenAt,
			Size:    info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// vacuumInto writes a consistent copy of the database at src to dst.
// VACUUM INTO reads through the WAL, so the copy includes committed
// transactions not yet checkpointed.
func vacuumInto(src, dst string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", src))
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping source database: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

// verify runs PRAGMA integrity_check against the database at path.
func verify(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupt, result)
	}
	return nil
}

// copyVerified copies the snapshot at src over dst after checking both ends.
// The store at dst must be closed.
func copyVerified(src, dst string) error {
	if err := verify(src); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to sync target file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close target file: %w", err)
	}

	// Stale WAL files from the replaced database would be replayed on open.
	if err := sqlite.RemoveWAL(dst); err != nil {
		return fmt.Errorf("failed to clear WAL files: %w", err)
	}

	return verify(dst)
}
