// Package notify carries memory and delivery events from lifecachectl to a
// running lifecache-web through files in {dataPath}/events/.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Event types written by lifecachectl.
const (
	MemoryCreated     = "memory_created"
	MemoryScheduled   = "memory_scheduled"
	MemoryRequeued    = "memory_requeued"
	DeliveryCompleted = "delivery_completed"
	DeliveryFailed    = "delivery_failed"
)

// Event is the payload of one event file.
type Event struct {
	Type     string    `json:"type"`
	RecordID string    `json:"record_id"`
	Owner    string    `json:"owner,omitempty"`
	State    string    `json:"state,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// EventWriter writes event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes ev as a new event file. Safe to call concurrently.
// The file is written under a temporary name and renamed so a watcher never
// reads a partial event.
func (w *EventWriter) Notify(ev Event) error {
	if ev.RecordID == "" {
		return fmt.Errorf("notify: event %q has no record ID", ev.Type)
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	name := fmt.Sprintf("%d-%s-%s", ev.Time.UnixNano(), ev.Type, sanitizeID(ev.RecordID))
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write event: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+eventExt)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

const eventExt = ".event"

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, id)
}
