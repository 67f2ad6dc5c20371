package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Start on a running service.
	ErrAlreadyRunning = errors.New("backup service already running")

	// ErrRunning is returned by Restore while the periodic loop is active.
	ErrRunning = errors.New("cannot restore while backup service is running")
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the SQLite database file to snapshot.
	DBPath string

	// Dir receives the snapshot files.
	Dir string

	// Interval between periodic snapshots (default: 6h).
	Interval time.Duration

	// Retention prunes old snapshots after each new one.
	Retention Retention

	// Verify runs an integrity check on every new snapshot.
	Verify bool

	// Clock is used for snapshot names and retention ages. Default: time.Now.
	Clock func() time.Time
}

// Status is a point-in-time view of the service.
type Status struct {
	Running   bool
	Last      time.Time
	Next      time.Time
	Snapshots int
	Bytes     int64
	Dir       string
}

// Service takes periodic snapshots of the record store.
type Service struct {
	cfg Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	last    time.Time
	next    time.Time
}

// New validates cfg and creates the snapshot directory.
func New(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.Retention = cfg.Retention.withDefaults()

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: failed to create backup directory: %w", err)
	}
	return &Service{cfg: cfg}, nil
}

// Start snapshots every Interval in the background until Stop is called or
// ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.next = s.cfg.Clock().Add(s.cfg.Interval)

	go s.loop(loopCtx, s.done)
	log.Printf("backup: started with interval %s into %s", s.cfg.Interval, s.cfg.Dir)
	return nil
}

// Stop ends the background loop and waits for a snapshot in progress.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("backup: stopped")
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.BackupNow(ctx)
			if err != nil {
				log.Printf("backup: scheduled snapshot failed: %v", err)
			} else {
				log.Printf("backup: wrote %s (%d bytes, %s, verified=%v)", snap.Path, snap.Size, snap.Duration, snap.Verified)
			}
			s.mu.Lock()
			s.next = s.cfg.Clock().Add(s.cfg.Interval)
			s.mu.Unlock()
		}
	}
}

// BackupNow writes a snapshot, verifies it when configured and prunes old
// snapshots. A retention failure is logged and does not fail the snapshot.
func (s *Service) BackupNow(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.cfg.DBPath); err != nil {
		return nil, fmt.Errorf("backup: database not found: %w", err)
	}

	started := time.Now()
	takenAt := s.cfg.Clock().UTC()
	path := filepath.Join(s.cfg.Dir, snapshotName(takenAt))

	if err := vacuumInto(s.cfg.DBPath, path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to stat snapshot: %w", err)
	}

	snap := &Snapshot{Path: path, TakenAt: takenAt, Size: info.Size()}
	if s.cfg.Verify {
		if err := verify(path); err != nil {
			return snap, err
		}
		snap.Verified = true
	}
	snap.Duration = time.Since(started)

	s.mu.Lock()
	s.last = takenAt
	s.mu.Unlock()

	if n, err := prune(s.cfg.Dir, s.cfg.Retention, takenAt); err != nil {
		log.Printf("backup: retention failed: %v", err)
	} else if n > 0 {
		log.Printf("backup: pruned %d old snapshot(s)", n)
	}
	return snap, nil
}

// List returns the stored snapshots, newest first.
func (s *Service) List() ([]Snapshot, error) {
	return listSnapshots(s.cfg.Dir)
}

// Restore replaces the database with the snapshot at path. The record store
// must be closed and the periodic loop stopped. The current database is
// kept aside and put back if the restore fails.
func (s *Service) Restore(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return ErrRunning
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup: snapshot not found: %w", err)
	}

	aside := s.cfg.DBPath + ".pre-restore"
	_ = os.Remove(aside)
	hadDB := false
	if _, err := os.Stat(s.cfg.DBPath); err == nil {
		if err := vacuumInto(s.cfg.DBPath, aside); err != nil {
			return fmt.Errorf("backup: failed to set current database aside: %w", err)
		}
		hadDB = true
		defer func() { _ = os.Remove(aside) }()
	}

	if err := copyVerified(path, s.cfg.DBPath); err != nil {
		if !hadDB {
			return err
		}
		if rollbackErr := copyVerified(aside, s.cfg.DBPath); rollbackErr != nil {
			return fmt.Errorf("backup: restore failed and rollback failed: %v (restore error: %w)", rollbackErr, err)
		}
		return fmt.Errorf("backup: restore failed, previous database kept: %w", err)
	}

	log.Printf("backup: restored %s from %s", s.cfg.DBPath, path)
	return nil
}

// Status reports the schedule and snapshot usage.
func (s *Service) Status() (*Status, error) {
	snapshots, err := s.List()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Status{
		Running:   s.running,
		Last:      s.last,
		Next:      s.next,
		Snapshots: len(snapshots),
		Bytes:     diskUsage(snapshots),
		Dir:       s.cfg.Dir,
	}, nil
}
