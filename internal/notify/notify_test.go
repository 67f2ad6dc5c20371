package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	if err := w.Notify(Event{Type: MemoryCreated, RecordID: "abc123", Owner: "ann"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".event" {
		t.Errorf("expected .event extension, got %s", entries[0].Name())
	}
	if !strings.Contains(entries[0].Name(), MemoryCreated) {
		t.Errorf("expected event type in file name, got %s", entries[0].Name())
	}
}

func TestEventWriterRequiresRecordID(t *testing.T) {
	w := NewEventWriter(t.TempDir())
	if err := w.Notify(Event{Type: MemoryCreated}); err == nil {
		t.Fatal("expected an error for an event without a record ID")
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()

	received := make(chan Event, 1)
	watcher := NewEventWatcher(dir, func(ev Event) {
		received <- ev
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	writer := NewEventWriter(dir)
	err := writer.Notify(Event{
		Type:     DeliveryFailed,
		RecordID: "rec-7",
		Owner:    "ann",
		State:    "failed",
		Error:    "channel down",
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != DeliveryFailed {
			t.Errorf("expected event type %s, got %s", DeliveryFailed, ev.Type)
		}
		if ev.RecordID != "rec-7" || ev.Owner != "ann" || ev.State != "failed" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Error != "channel down" {
			t.Errorf("expected error to survive, got %q", ev.Error)
		}
		if ev.Time.IsZero() {
			t.Error("expected the writer to stamp the event time")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Consumed files are removed.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(filepath.Join(dir, "events"))
		if len(entries) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected consumed event files to be removed")
}

func TestEventWatcherDrainsExistingInOrder(t *testing.T) {
	dir := t.TempDir()

	writer := NewEventWriter(dir)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = writer.Notify(Event{Type: DeliveryCompleted, RecordID: "second", Time: base.Add(time.Second)})
	_ = writer.Notify(Event{Type: MemoryCreated, RecordID: "first", Time: base})

	var got []string
	watcher := NewEventWatcher(dir, func(ev Event) {
		got = append(got, ev.RecordID)
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("expected drained events [first second], got %v", got)
	}
}

func TestEventWatcherSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(dir, "events")
	if err := os.MkdirAll(events, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(events, "1-bad.event"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	called := false
	watcher := NewEventWatcher(dir, func(Event) { called = true })
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	watcher.Stop()
	watcher.Stop()

	if called {
		t.Error("invalid event files must not reach the callback")
	}
	if _, err := os.Stat(filepath.Join(events, "1-bad.event")); !os.IsNotExist(err) {
		t.Error("expected invalid event file to be removed")
	}
}

func TestSanitizeID(t *testing.T) {
	got := sanitizeID("mem:general:abc/def")
	if got != "mem_general_abc_def" {
		t.Errorf("expected mem_general_abc_def, got %s", got)
	}
}
