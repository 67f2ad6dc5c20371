// Package book compiles analyzed memories into a memory book and renders it
// as PDF or XLSX.
package book

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/lifecache/pkg/types"
)

const (
	// MaxExcerpts caps the excerpts selected for a book.
	MaxExcerpts = 10

	// ExcerptRunes is the length an excerpt is cut to before the ellipsis.
	ExcerptRunes = 280

	// MaxThemes caps the theme table.
	MaxThemes = 20
)

var (
	// ErrNoRecords is returned when there is nothing to compile.
	ErrNoRecords = errors.New("no records to compile")

	// ErrMissingReport is returned when a record has not been analyzed.
	ErrMissingReport = errors.New("record has no analysis report")
)

// Entry is one memory as it appears in the book.
type Entry struct {
	ID              string
	Title           string
	CreatedAt       time.Time
	Source          types.Source
	Recipient       string
	DeliveryAt      *time.Time
	DeliveryState   types.DeliveryState
	DominantEmotion string
	Valence         float64
	Themes          []string
	Summary         []string
	Excerpt         string
}

// EmotionScore is one bar of the emotion profile.
type EmotionScore struct {
	Emotion string
	Score   float64
}

// ThemeCount counts how many memories carry a theme.
type ThemeCount struct {
	Theme string
	Count int
}

// Book is the compiled, render-ready memory book.
type Book struct {
	Title       string
	GeneratedAt time.Time
	Recipients  []string
	Entries     []Entry
	Summary     []string
	Excerpts    []string
	Emotions    []EmotionScore
	Themes      []ThemeCount
}

// Compile aggregates records into a Book. Records are ordered by creation
// time then ID. Every record must carry a report.
func Compile(title string, records []*types.Record, now time.Time) (*Book, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	for _, r := range records {
		if r == nil || r.Report == nil {
			id := ""
			if r != nil {
				id = r.ID
			}
			return nil, fmt.Errorf("%w: %s", ErrMissingReport, id)
		}
	}

	sorted := append([]*types.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if strings.TrimSpace(title) == "" {
		title = "Memory Book"
	}
	b := &Book{Title: title, GeneratedAt: now.UTC()}

	emotionSums := make(map[string]float64)
	themeCounts := make(map[string]int)
	seenRecipient := make(map[string]bool)

	for _, r := range sorted {
		rep := r.Report
		excerpt := Excerpt(r.Content)

		b.Entries = append(b.Entries, Entry{
			ID:              r.ID,
			Title:           r.Title,
			CreatedAt:       r.CreatedAt,
			Source:          r.Source,
			Recipient:       r.Recipient,
			DeliveryAt:      r.DeliveryAt,
			DeliveryState:   r.DeliveryState,
			DominantEmotion: rep.DominantEmotion,
			Valence:         rep.Valence,
			Themes:          rep.ThemeTags,
			Summary:         rep.Summary,
			Excerpt:         excerpt,
		})

		b.Summary = append(b.Summary, rep.Summary...)
		if excerpt != "" && len(b.Excerpts) < MaxExcerpts {
			b.Excerpts = append(b.Excerpts, excerpt)
		}
		for k, v := range rep.EmotionScores {
			emotionSums[k] += v
		}
		seenTheme := make(map[string]bool)
		for _, t := range rep.ThemeTags {
			if !seenTheme[t] {
				seenTheme[t] = true
				themeCounts[t]++
			}
		}
		if r.Recipient != "" && !seenRecipient[r.Recipient] {
			seenRecipient[r.Recipient] = true
			b.Recipients = append(b.Recipients, r.Recipient)
		}
	}

	b.Emotions = normalizeEmotions(emotionSums)
	b.Themes = rankThemes(themeCounts)
	return b, nil
}

// Excerpt trims text and cuts it to ExcerptRunes runes, adding "..." when cut.
func Excerpt(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= ExcerptRunes {
		return text
	}
	return string(r[:ExcerptRunes]) + "..."
}

func normalizeEmotions(sums map[string]float64) []EmotionScore {
	var total float64
	for _, v := range sums {
		total += v
	}
	out := make([]EmotionScore, 0, len(sums))
	for k, v := range sums {
		score := 0.0
		if total > 0 {
			score = math.Round(v/total*1e4) / 1e4
		}
		out = append(out, EmotionScore{Emotion: k, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}

func rankThemes(counts map[string]int) []ThemeCount {
	out := make([]ThemeCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, ThemeCount{Theme: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Theme < out[j].Theme
	})
	if len(out) > MaxThemes {
		out = out[:MaxThemes]
	}
	return out
}

// DominantEmotion returns the strongest emotion of the book, or "neutral".
func (b *Book) DominantEmotion() string {
	if len(b.Emotions) == 0 || b.Emotions[0].Score == 0 {
		return types.NeutralEmotion
	}
	return b.Emotions[0].Emotion
}
