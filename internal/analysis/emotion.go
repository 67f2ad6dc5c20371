package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/scrypster/lifecache/pkg/types"
)

// scoreEmotions blends keyword hits with document sentiment and normalizes
// the configured categories to sum to one.
func scoreEmotions(categories []string, keywords map[string][][]string, tokens []string, doc documentSentiment) (map[string]float64, string) {
	raw := make(map[string]float64, len(categories))
	for _, cat := range categories {
		for _, phrase := range keywords[cat] {
			if containsSequence(tokens, phrase) {
				raw[cat]++
			}
		}
	}

	switch v := doc.valence; {
	case v > 0:
		raw["joy"] += 2 * v
		raw["gratitude"] += doc.pos
		raw["love"] += 0.5 * doc.pos
	case v < 0:
		raw["sorrow"] += 2 * -v
		raw["fear"] += doc.neg
		raw["anger"] += 0.5 * doc.neg
	}

	var total float64
	for _, cat := range categories {
		total += raw[cat]
	}

	scores := make(map[string]float64, len(categories))
	dominant := types.NeutralEmotion
	best := 0.0
	for _, cat := range categories {
		var s float64
		if total > 0 {
			s = round4(raw[cat] / total)
		}
		scores[cat] = s
		if s > best {
			best = s
			dominant = cat
		}
	}
	return scores, dominant
}

// compileKeywords tokenizes the keyword phrases of the configured categories.
func compileKeywords(categories []string) map[string][][]string {
	out := make(map[string][][]string, len(categories))
	for _, cat := range categories {
		for _, kw := range emotionKeywords[cat] {
			out[cat] = append(out[cat], words(kw))
		}
	}
	return out
}

func containsSequence(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(tokens); i++ {
		for j, w := range seq {
			if tokens[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// themes ranks content words by frequency, breaking ties by first occurrence.
func themes(tokens []string, limit int) []string {
	type term struct {
		word  string
		count int
	}
	index := make(map[string]int)
	var terms []term
	for _, tok := range tokens {
		w := strings.TrimSuffix(tok, "'s")
		if !isContentWord(w) {
			continue
		}
		if at, ok := index[w]; ok {
			terms[at].count++
			continue
		}
		index[w] = len(terms)
		terms = append(terms, term{word: w, count: 1})
	}

	// terms is in first-occurrence order, so a stable sort on count alone
	// breaks ties by position.
	sort.SliceStable(terms, func(a, b int) bool { return terms[a].count > terms[b].count })

	if len(terms) > limit {
		terms = terms[:limit]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.word
	}
	return out
}

func isContentWord(w string) bool {
	return len([]rune(w)) >= 3 && !stopwords[w] && !isNumeric(w)
}
