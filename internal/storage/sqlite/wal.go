package sqlite

import (
	"errors"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// walSuffixes name the sidecar files SQLite keeps next to a WAL-mode database.
var walSuffixes = []string{"-wal", "-shm"}

// dbPathFromDSN returns the file behind a DSN: a bare path or a file: URI.
// In-memory and unparseable DSNs give "".
func dbPathFromDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		return ""
	}
	if !strings.HasPrefix(dsn, "file:") {
		return dsn
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == ":memory:" {
		return ""
	}
	return path
}

// isRecoverableWALError reports whether an open failure looks like the one
// a crashed writer's leftover sidecar files cause.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{"disk I/O error", "database is locked"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// isWALStale reports whether sidecar files exist for dbPath while no process
// holds the database open. Without lsof nothing is considered stale.
func isWALStale(dbPath string) bool {
	paths := []string{dbPath}
	found := false
	for _, suffix := range walSuffixes {
		if _, err := os.Stat(dbPath + suffix); err == nil {
			found = true
		}
		paths = append(paths, dbPath+suffix)
	}
	if !found {
		return false
	}

	lsof, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}
	out, err := exec.Command(lsof, append([]string{"-t"}, paths...)...).Output()
	if err != nil {
		// lsof exits 1 when no process has the files open.
		return true
	}
	return strings.TrimSpace(string(out)) == ""
}

// RemoveWAL deletes the sidecar files of the database at dbPath. The
// database must not be open. Missing files are not an error.
func RemoveWAL(dbPath string) error {
	var errs []error
	for _, suffix := range walSuffixes {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func removeStaleWAL(dbPath string) {
	if err := RemoveWAL(dbPath); err != nil {
		log.Printf("sqlite: failed to remove stale WAL files for %s: %v", dbPath, err)
	}
}
