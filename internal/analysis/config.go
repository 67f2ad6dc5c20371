package analysis

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate and New.
var ErrInvalidConfig = errors.New("invalid analysis config")

// Config holds the tunables of the analysis engine.
type Config struct {
	// SummarySentences is K, the number of sentences kept in a summary.
	SummarySentences int `yaml:"summary_sentences"`

	// EmotionCategories lists the reported categories. Order breaks ties when
	// picking the dominant emotion.
	EmotionCategories []string `yaml:"emotion_categories"`

	// MaxThemes caps the number of theme tags.
	MaxThemes int `yaml:"max_themes"`

	// LexRank parameters.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Damping             float64 `yaml:"damping"`
	MaxIterations       int     `yaml:"max_iterations"`
	Tolerance           float64 `yaml:"tolerance"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		SummarySentences:    5,
		EmotionCategories:   DefaultCategories(),
		MaxThemes:           8,
		SimilarityThreshold: 0.1,
		Damping:             0.85,
		MaxIterations:       100,
		Tolerance:           1e-6,
	}
}

// DefaultCategories returns the built-in emotion categories in tie-break order.
func DefaultCategories() []string {
	return []string{"joy", "sorrow", "advice", "legacy", "gratitude", "anger", "fear", "love"}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SummarySentences < 1 {
		return fmt.Errorf("%w: summary_sentences must be at least 1, got %d", ErrInvalidConfig, c.SummarySentences)
	}
	if len(c.EmotionCategories) == 0 {
		return fmt.Errorf("%w: at least one emotion category is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.EmotionCategories))
	for _, cat := range c.EmotionCategories {
		if _, ok := emotionKeywords[cat]; !ok {
			return fmt.Errorf("%w: unknown emotion category %q", ErrInvalidConfig, cat)
		}
		if seen[cat] {
			return fmt.Errorf("%w: duplicate emotion category %q", ErrInvalidConfig, cat)
		}
		seen[cat] = true
	}
	if c.MaxThemes < 0 {
		return fmt.Errorf("%w: max_themes must not be negative", ErrInvalidConfig)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be within [0,1]", ErrInvalidConfig)
	}
	if c.Damping <= 0 || c.Damping >= 1 {
		return fmt.Errorf("%w: damping must be within (0,1), got %g", ErrInvalidConfig, c.Damping)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be at least 1", ErrInvalidConfig)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfig)
	}
	return nil
}
