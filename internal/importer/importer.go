// Package importer bulk-loads journal folders (Markdown or plain-text notes,
// one memory per file) into LifeCache.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/pkg/types"
)

// ErrNoOwner is returned for an entry with no frontmatter owner when the
// importer has no default owner.
var ErrNoOwner = errors.New("entry has no owner")

// Creator stores analyzed memories. *engine.MemoryEngine satisfies it.
type Creator interface {
	CreateMemory(ctx context.Context, req engine.CreateRequest) (*types.Record, error)
}

// Result is the summary of one import run.
type Result struct {
	FilesFound int           `json:"files_found"`
	Imported   int           `json:"imported"`
	Scheduled  int           `json:"scheduled"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	RecordIDs  []string      `json:"record_ids"`
	Errors     []string      `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
}

// Importer walks a journal folder and creates one memory per file.
type Importer struct {
	creator Creator
	owner   string

	// OnEntry, when set, is called after each file with the created record
	// or the error that stopped it.
	OnEntry func(rel string, rec *types.Record, err error)
}

// New creates an importer. defaultOwner is used for entries without an
// owner in their frontmatter.
func New(creator Creator, defaultOwner string) *Importer {
	return &Importer{creator: creator, owner: strings.TrimSpace(defaultOwner)}
}

// Import reads every .md, .markdown and .txt file below dir in path order.
// A file that cannot be read, parsed or stored is counted as failed and the
// import continues; empty files are skipped. Only a bad dir or a cancelled
// ctx returns an error.
func (imp *Importer) Import(ctx context.Context, dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}

	start := time.Now()
	files, err := collectJournalFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	result := &Result{FilesFound: len(files), RecordIDs: []string{}}
	for _, absPath := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		rel, _ := filepath.Rel(dir, absPath)
		rec, err := imp.importFile(ctx, absPath, rel)
		switch {
		case err == nil && rec == nil:
			result.Skipped++
		case err != nil:
			log.Printf("import: skip %s: %v", rel, err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, err))
		default:
			result.Imported++
			result.RecordIDs = append(result.RecordIDs, rec.ID)
			if rec.IsScheduled() {
				result.Scheduled++
			}
		}
		if imp.OnEntry != nil && (rec != nil || err != nil) {
			imp.OnEntry(rel, rec, err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// importFile returns (nil, nil) for an empty entry.
func (imp *Importer) importFile(ctx context.Context, absPath, rel string) (*types.Record, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	entry, err := ParseEntry(data, rel)
	if err != nil {
		return nil, err
	}
	if entry.Content == "" {
		return nil, nil
	}

	owner := entry.Owner
	if owner == "" {
		owner = imp.owner
	}
	if owner == "" {
		return nil, ErrNoOwner
	}

	return imp.creator.CreateMemory(ctx, engine.CreateRequest{
		Owner:      owner,
		Title:      entry.Title,
		Content:    entry.Content,
		Recipient:  entry.Recipient,
		Message:    entry.Message,
		DeliveryAt: entry.DeliveryAt,
	})
}

// collectJournalFiles walks dir and returns the journal files in it, sorted.
// Hidden directories (e.g. .obsidian, .git) are skipped.
func collectJournalFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md", ".markdown", ".txt":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
