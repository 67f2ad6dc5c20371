package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/lifecache/internal/analysis"
	"github.com/scrypster/lifecache/internal/delivery"
	"github.com/scrypster/lifecache/internal/engine"
	"github.com/scrypster/lifecache/internal/scheduler"
	"github.com/scrypster/lifecache/internal/storage/sqlite"
	"github.com/scrypster/lifecache/pkg/types"
)

type fakeCreator struct {
	reqs []engine.CreateRequest
	fail string // content that is rejected
}

func (f *fakeCreator) CreateMemory(_ context.Context, req engine.CreateRequest) (*types.Record, error) {
	if f.fail != "" && req.Content == f.fail {
		return nil, errors.New("store unavailable")
	}
	f.reqs = append(f.reqs, req)
	rec := &types.Record{
		ID:            req.Owner + "-" + time.Now().Format("150405.000000000"),
		Owner:         req.Owner,
		Content:       req.Content,
		DeliveryState: types.DeliveryUnscheduled,
		DeliveryAt:    req.DeliveryAt,
	}
	if req.DeliveryAt != nil {
		rec.DeliveryState = types.DeliveryPending
	}
	return rec, nil
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestParseEntry_FrontmatterAndMarkup(t *testing.T) {
	entry, err := ParseEntry([]byte(`---
owner: ann
recipient: sam
message: For your wedding day
deliver_at: 2030-06-01
---

# Lake Weekend

We drove to the lake with [[Grandpa|grandpa]] and **laughed** all day.

- fishing at dawn
- a storm at night
`), "2026/lake.md")
	require.NoError(t, err)

	assert.Equal(t, "Lake Weekend", entry.Title)
	assert.Equal(t, "ann", entry.Owner)
	assert.Equal(t, "sam", entry.Recipient)
	assert.Equal(t, "For your wedding day", entry.Message)
	require.NotNil(t, entry.DeliveryAt)
	assert.Equal(t, time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC), *entry.DeliveryAt)

	assert.Equal(t, "Lake Weekend.\n\nWe drove to the lake with grandpa and laughed all day.\n\nfishing at dawn.\na storm at night.", entry.Content)
}

func TestParseEntry_PlainText(t *testing.T) {
	entry, err := ParseEntry([]byte("Mom sang in the kitchen.\n"), "notes/first_snow.txt")
	require.NoError(t, err)
	assert.Equal(t, "first snow", entry.Title)
	assert.Equal(t, "Mom sang in the kitchen.", entry.Content)
	assert.Empty(t, entry.Owner)
	assert.Nil(t, entry.DeliveryAt)
}

func TestParseEntry_Errors(t *testing.T) {
	_, err := ParseEntry([]byte("---\nowner: [unclosed\n---\nbody"), "bad.md")
	assert.Error(t, err)

	_, err = ParseEntry([]byte("---\ndeliver_at: someday\n---\nbody"), "when.md")
	assert.Error(t, err)
}

func TestStripWikiLinks(t *testing.T) {
	assert.Equal(t, "see Beta and the lake", StripWikiLinks("see [[Beta]] and [[Lake House|the lake]]"))
}

func TestImport_Folder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "We planted the apple tree.")
	writeFile(t, dir, "b/letter.md", "---\nowner: sam\nrecipient: ann\ndeliver_at: 2031-01-01T09:00:00Z\n---\nHappy new year, Ann.")
	writeFile(t, dir, "c.txt", "   \n")
	writeFile(t, dir, "d.md", "broken store")
	writeFile(t, dir, "photo.jpg", "not a journal")
	writeFile(t, dir, ".obsidian/config.md", "hidden")

	creator := &fakeCreator{fail: "broken store"}
	imp := New(creator, "ann")
	var seen []string
	imp.OnEntry = func(rel string, _ *types.Record, _ error) { seen = append(seen, rel) }

	result, err := imp.Import(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, result.FilesFound)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Scheduled)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.RecordIDs, 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "d.md")
	assert.Equal(t, []string{"a.md", filepath.Join("b", "letter.md"), "d.md"}, seen)

	require.Len(t, creator.reqs, 2)
	assert.Equal(t, "ann", creator.reqs[0].Owner)
	assert.Equal(t, "sam", creator.reqs[1].Owner)
	assert.Equal(t, "ann", creator.reqs[1].Recipient)
}

func TestImport_RequiresOwner(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "A quiet morning.")

	result, err := New(&fakeCreator{}, "").Import(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors[0], ErrNoOwner.Error())
}

func TestImport_BadDirectoryAndCancel(t *testing.T) {
	imp := New(&fakeCreator{}, "ann")

	_, err := imp.Import(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "x.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = imp.Import(context.Background(), file)
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "A quiet morning.")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := imp.Import(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Imported)
}

func TestImport_TitlesReachStoredRecords(t *testing.T) {
	store, err := sqlite.NewRecordStore(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	analyzer, err := analysis.New(analysis.DefaultConfig())
	require.NoError(t, err)
	ch := delivery.Func{ChannelName: "test", Fn: func(context.Context, *types.Record, *types.AnalysisReport) error { return nil }}
	sched, err := scheduler.New(store, ch, scheduler.Config{})
	require.NoError(t, err)
	eng, err := engine.NewMemoryEngine(store, analyzer, sched, engine.WithSchedulerLoop(false))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() { _ = eng.Shutdown(ctx) })

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "---\ntitle: Apple Tree\n---\nWe planted the apple tree.")
	writeFile(t, dir, "b.md", "# Lake Weekend\n\nWe drove to the lake.")
	writeFile(t, dir, "first-snow.txt", "The first snow fell overnight.")

	imp := New(eng, "ann")
	titles := map[string]string{}
	imp.OnEntry = func(rel string, rec *types.Record, err error) {
		require.NoError(t, err)
		stored, getErr := eng.Get(ctx, rec.ID)
		require.NoError(t, getErr)
		titles[rel] = stored.Title
	}

	result, err := imp.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, map[string]string{
		"a.md":           "Apple Tree",
		"b.md":           "Lake Weekend",
		"first-snow.txt": "first snow",
	}, titles)
}
