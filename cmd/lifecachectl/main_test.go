package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/lifecache/pkg/types"
)

// runCtl runs one lifecachectl invocation against dataDir and returns its output.
func runCtl(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"lifecachectl", args[0], "--data", dataDir}, args[1:]...)
	err := newCommand(&out).Run(context.Background(), argv)
	return out.String(), err
}

func addMemory(t *testing.T, dataDir string, args ...string) types.Record {
	t.Helper()
	out, err := runCtl(t, dataDir, append([]string{"add"}, args...)...)
	require.NoError(t, err)
	var rec types.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	return rec
}

func TestCtl_AddShowList(t *testing.T) {
	dir := t.TempDir()

	rec := addMemory(t, dir, "--owner", "ann", "--content", "I love my family. We went to the lake.")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, types.DeliveryUnscheduled, rec.DeliveryState)
	require.NotNil(t, rec.Report)

	out, err := runCtl(t, dir, "show", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, `"summary"`)

	out, err = runCtl(t, dir, "list", "--owner", "ann")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "1 of 1 memories")

	_, err = runCtl(t, dir, "list", "--state", "lost")
	assert.Error(t, err)
}

func TestCtl_AddFromTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.txt")
	require.NoError(t, os.WriteFile(path, []byte("Grandpa taught me to fish."), 0o644))

	rec := addMemory(t, dir, "--owner", "ann", "--title", "Fishing", "--file", path)
	assert.Equal(t, "Grandpa taught me to fish.", rec.Content)
	assert.Equal(t, "Fishing", rec.Title)
	assert.Equal(t, types.SourceText, rec.Source)
}

func TestCtl_AddAudioWithoutTranscription(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	_, err := runCtl(t, dir, "add", "--owner", "ann", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription")
}

func TestCtl_AddRequiresOneSource(t *testing.T) {
	dir := t.TempDir()

	_, err := runCtl(t, dir, "add", "--owner", "ann")
	assert.Error(t, err)

	_, err = runCtl(t, dir, "add", "--owner", "ann", "--content", "x", "--file", "y.txt")
	assert.Error(t, err)
}

func TestCtl_ScheduleTickRequeue(t *testing.T) {
	dir := t.TempDir()
	rec := addMemory(t, dir, "--owner", "ann", "--content", "Happy birthday, Sam.", "--recipient", "sam")

	_, err := runCtl(t, dir, "schedule", rec.ID)
	assert.Error(t, err, "a delivery date is required")

	out, err := runCtl(t, dir, "schedule", "--in", "1ms", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "pending")

	time.Sleep(10 * time.Millisecond)
	out, err = runCtl(t, dir, "tick")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered\t"+rec.ID)
	assert.Contains(t, out, "1 delivered, 0 failed, 0 skipped via log")

	logged, err := os.ReadFile(filepath.Join(dir, "deliveries", "deliveries.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), rec.ID)

	out, err = runCtl(t, dir, "tick")
	require.NoError(t, err)
	assert.Contains(t, out, "0 delivered", "delivered memories are never sent twice")

	_, err = runCtl(t, dir, "requeue", rec.ID)
	assert.Error(t, err, "only failed deliveries can be requeued")
}

func TestCtl_Book(t *testing.T) {
	dir := t.TempDir()
	addMemory(t, dir, "--owner", "ann", "--content", "I love my family. We went to the lake.")
	addMemory(t, dir, "--owner", "ann", "--content", "The storm scared us, but we were safe.")

	pdfPath := filepath.Join(dir, "book.pdf")
	out, err := runCtl(t, dir, "book", "--owner", "ann", "--title", "Summer", "--out", pdfPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"Summer" (2 memories`)
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	xlsxPath := filepath.Join(dir, "book.xlsx")
	_, err = runCtl(t, dir, "book", "--owner", "ann", "--format", "xlsx", "--out", xlsxPath)
	require.NoError(t, err)
	_, err = os.Stat(xlsxPath)
	assert.NoError(t, err)

	_, err = runCtl(t, dir, "book", "--owner", "nobody", "--out", filepath.Join(dir, "none.pdf"))
	assert.Error(t, err)

	_, err = runCtl(t, dir, "book", "--owner", "ann", "--format", "docx")
	assert.Error(t, err)
}

func TestCtl_BackupCreateListRestore(t *testing.T) {
	dir := t.TempDir()
	kept := addMemory(t, dir, "--owner", "ann", "--content", "The first snow of the year.")

	out, err := runCtl(t, dir, "backup", "create")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "backups"))
	assert.Contains(t, out, "verified: true")

	later := addMemory(t, dir, "--owner", "ann", "--content", "We built a snowman.")

	out, err = runCtl(t, dir, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "lifecache-")
	assert.Contains(t, out, "1 snapshots")

	out, err = runCtl(t, dir, "backup", "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored from")

	_, err = runCtl(t, dir, "show", kept.ID)
	assert.NoError(t, err)
	_, err = runCtl(t, dir, "show", later.ID)
	assert.Error(t, err, "memories added after the snapshot are gone")

	_, err = runCtl(t, dir, "backup", "restore", "lifecache-19990101-000000.000000.db")
	assert.Error(t, err)
}

func TestCtl_BackupRestoreWithoutSnapshots(t *testing.T) {
	dir := t.TempDir()
	addMemory(t, dir, "--owner", "ann", "--content", "A quiet morning.")

	_, err := runCtl(t, dir, "backup", "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshots")
}

func TestCtl_WritesEventsForWeb(t *testing.T) {
	dir := t.TempDir()
	rec := addMemory(t, dir, "--owner", "ann", "--content", "Dinner at grandma's.")
	_, err := runCtl(t, dir, "schedule", "--in", "1ms", rec.ID)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = runCtl(t, dir, "tick")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "memory_created")
	assert.Contains(t, joined, "memory_scheduled")
	assert.Contains(t, joined, "delivery_completed")
}

func TestCtl_ImportJournalFolder(t *testing.T) {
	dir := t.TempDir()
	journal := filepath.Join(dir, "journal")
	require.NoError(t, os.MkdirAll(journal, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(journal, "lake.md"),
		[]byte("# Lake\n\nWe swam until sunset and laughed."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(journal, "letter.md"),
		[]byte("---\nrecipient: sam\ndeliver_at: 2040-01-01T00:00:00Z\n---\nI am proud of you."), 0o644))

	out, err := runCtl(t, dir, "import", "--owner", "ann", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "imported\tlake.md")
	assert.Contains(t, out, "2 imported (1 scheduled), 0 skipped, 0 failed of 2 files")

	out, err = runCtl(t, dir, "list", "--owner", "ann")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 2 memories")

	_, err = runCtl(t, dir, "import")
	assert.Error(t, err)
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	when, err := parseWhen("", 0, now)
	require.NoError(t, err)
	assert.Nil(t, when)

	when, err = parseWhen("", 48*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), *when)

	when, err = parseWhen("2030-06-01T09:00:00Z", 0, now)
	require.NoError(t, err)
	assert.Equal(t, 2030, when.Year())

	_, err = parseWhen("tomorrow", 0, now)
	assert.Error(t, err)

	_, err = parseWhen("2030-06-01T09:00:00Z", time.Hour, now)
	assert.Error(t, err)

	_, err = parseWhen("", -time.Hour, now)
	assert.Error(t, err)
}
