package book

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/scrypster/lifecache/pkg/types"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration, content string, scores map[string]float64, themes ...string) *types.Record {
	return &types.Record{
		ID:            id,
		Owner:         "ann",
		Content:       content,
		Source:        types.SourceText,
		Recipient:     "sam",
		CreatedAt:     base.Add(offset),
		DeliveryState: types.DeliveryUnscheduled,
		Report: &types.AnalysisReport{
			EmotionScores:   scores,
			DominantEmotion: "joy",
			ThemeTags:       themes,
			Summary:         []string{content},
		},
	}
}

func sampleRecords() []*types.Record {
	return []*types.Record{
		record("b", time.Hour, "We went to the lake.", map[string]float64{"joy": 0.5, "love": 0.5}, "lake", "family"),
		record("a", 0, "I love my family.", map[string]float64{"joy": 1}, "family"),
	}
}

func TestCompile_AggregatesInCreationOrder(t *testing.T) {
	b, err := Compile("Ann's Book", sampleRecords(), base.Add(48*time.Hour))
	require.NoError(t, err)

	require.Len(t, b.Entries, 2)
	assert.Equal(t, "a", b.Entries[0].ID)
	assert.Equal(t, "b", b.Entries[1].ID)
	assert.Equal(t, []string{"I love my family.", "We went to the lake."}, b.Summary)
	assert.Equal(t, []string{"sam"}, b.Recipients)

	assert.Equal(t, []EmotionScore{{"joy", 0.75}, {"love", 0.25}}, b.Emotions)
	assert.Equal(t, "joy", b.DominantEmotion())
	assert.Equal(t, []ThemeCount{{"family", 2}, {"lake", 1}}, b.Themes)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("x", nil, base)
	assert.ErrorIs(t, err, ErrNoRecords)

	recs := sampleRecords()
	recs[1].Report = nil
	_, err = Compile("x", recs, base)
	assert.ErrorIs(t, err, ErrMissingReport)
}

func TestCompile_ExcerptLimits(t *testing.T) {
	long := strings.Repeat("é", ExcerptRunes+5)
	var recs []*types.Record
	for i := 0; i < MaxExcerpts+3; i++ {
		recs = append(recs, record(fmt.Sprintf("r%02d", i), time.Duration(i)*time.Minute, long, map[string]float64{"joy": 1}))
	}

	b, err := Compile("", recs, base)
	require.NoError(t, err)
	assert.Equal(t, "Memory Book", b.Title)
	assert.Len(t, b.Excerpts, MaxExcerpts)
	assert.Equal(t, ExcerptRunes+3, len([]rune(b.Excerpts[0])))
	assert.True(t, strings.HasSuffix(b.Excerpts[0], "..."))

	assert.Equal(t, "short", Excerpt("  short  "))
}

func TestCompile_NeutralWhenNoScores(t *testing.T) {
	recs := sampleRecords()
	for _, r := range recs {
		r.Report.EmotionScores = nil
	}
	b, err := Compile("x", recs, base)
	require.NoError(t, err)
	assert.Empty(t, b.Emotions)
	assert.Equal(t, types.NeutralEmotion, b.DominantEmotion())
}

func TestRenderPDF(t *testing.T) {
	b, err := Compile("Ann's Book", sampleRecords(), base)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, b))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, 3, r.NumPage(), "cover, summary and emotion profile")
}

func TestRenderPDF_ShowsEntryTitles(t *testing.T) {
	recs := sampleRecords()
	recs[1].Title = "Lake Weekend" // record "a", first by creation
	b, err := Compile("Ann's Book", recs, base)
	require.NoError(t, err)
	assert.Equal(t, "Lake Weekend", b.Entries[0].Title)

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, b))

	r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	text, err := r.Page(2).GetPlainText(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Weekend")
}

func TestRenderXLSX(t *testing.T) {
	recs := sampleRecords()
	recs[1].Title = "Lake Weekend" // record "a", first by creation
	b, err := Compile("Ann's Book", recs, base)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderXLSX(&buf, b))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{entriesSheet, emotionsSheet}, f.GetSheetList())

	rows, err := f.GetRows(entriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Title", rows[0][1])
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "Lake Weekend", rows[1][1])
	assert.Equal(t, "family", rows[1][9])

	score, err := f.GetCellValue(emotionsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "joy", score)
}
