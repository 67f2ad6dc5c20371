package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventWatcher consumes the event files lifecachectl leaves in the events
// directory. Each file is deleted before its event is handed on, so an
// event reaches at most one watcher.
type EventWatcher struct {
	dir    string
	handle func(Event)

	fsw      *fsnotify.Watcher
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewEventWatcher creates a watcher for {dataPath}/events/.
func NewEventWatcher(dataPath string, handle func(Event)) *EventWatcher {
	return &EventWatcher{
		dir:     filepath.Join(dataPath, "events"),
		handle:  handle,
		stopped: make(chan struct{}),
	}
}

// Start begins watching and then consumes any files already waiting, so
// nothing written in between is missed.
func (ew *EventWatcher) Start() error {
	if err := os.MkdirAll(ew.dir, 0o700); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(ew.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	ew.fsw = fsw

	ew.consumeBacklog()
	go ew.watch()
	log.Printf("notify: watching %s for lifecachectl events", ew.dir)
	return nil
}

// Stop closes the watcher and waits for the loop to exit. It is a no-op on
// a watcher that never started.
func (ew *EventWatcher) Stop() {
	if ew.fsw == nil {
		return
	}
	ew.stopOnce.Do(func() {
		_ = ew.fsw.Close()
		<-ew.stopped
	})
}

func (ew *EventWatcher) watch() {
	defer close(ew.stopped)
	events, errs := ew.fsw.Events, ew.fsw.Errors
	for events != nil || errs != nil {
		select {
		case fe, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if fe.Has(fsnotify.Create) || fe.Has(fsnotify.Rename) {
				ew.consume(fe.Name)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// consumeBacklog handles leftover files in name order, which is write order.
func (ew *EventWatcher) consumeBacklog() {
	entries, err := os.ReadDir(ew.dir)
	if err != nil {
		log.Printf("notify: failed to read %s: %v", ew.dir, err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		ew.consume(filepath.Join(ew.dir, name))
	}
}

// consume reads, deletes and dispatches one event file. Temporary files and
// files another reader already took are ignored.
func (ew *EventWatcher) consume(path string) {
	if !strings.HasSuffix(path, eventExt) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if os.Remove(path) != nil {
		return
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("notify: skipping malformed %s: %v", filepath.Base(path), err)
		return
	}
	if ev.RecordID == "" || ew.handle == nil {
		return
	}
	ew.handle(ev)
}
