// Package analysis turns memory text into an AnalysisReport: emotion scores,
// a valence/arousal pair, theme tags and an extractive LexRank summary.
//
// Analysis is a pure function of the text and the Config. It performs no I/O
// and holds no mutable state, so an Analyzer is safe for concurrent use.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scrypster/lifecache/pkg/types"
)

// ErrEmptyContent is returned for blank or whitespace-only text.
var ErrEmptyContent = errors.New("empty content")

// Analyzer scores and summarizes memory text.
type Analyzer struct {
	cfg      Config
	keywords map[string][][]string
}

// New validates cfg and returns an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.EmotionCategories = append([]string(nil), cfg.EmotionCategories...)
	return &Analyzer{
		cfg:      cfg,
		keywords: compileKeywords(cfg.EmotionCategories),
	}, nil
}

// Config returns a copy of the analyzer configuration.
func (a *Analyzer) Config() Config {
	c := a.cfg
	c.EmotionCategories = append([]string(nil), a.cfg.EmotionCategories...)
	return c
}

// Analyze produces the report for text.
func (a *Analyzer) Analyze(text string) (*types.AnalysisReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: no sentences found", ErrEmptyContent)
	}

	var tokens []string
	for _, s := range sentences {
		tokens = append(tokens, s.words...)
	}

	doc := scoreDocument(sentences)
	scores, dominant := scoreEmotions(a.cfg.EmotionCategories, a.keywords, tokens, doc)

	var summary []string
	if len(sentences) <= a.cfg.SummarySentences {
		summary = selectSummary(sentences, nil, a.cfg.SummarySentences)
	} else {
		summary = selectSummary(sentences, lexRank(sentences, a.cfg), a.cfg.SummarySentences)
	}

	return &types.AnalysisReport{
		EmotionScores:   scores,
		DominantEmotion: dominant,
		Valence:         round4(doc.valence),
		Arousal:         round4(doc.arousal),
		ThemeTags:       themes(tokens, a.cfg.MaxThemes),
		Summary:         summary,
		SentenceCount:   len(sentences),
		WordCount:       len(tokens),
	}, nil
}
