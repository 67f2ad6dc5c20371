package types

// AnalysisReport is the structured output of the analysis engine for one record.
type AnalysisReport struct {
	// EmotionScores maps each configured emotion category to an intensity in [0,1].
	EmotionScores map[string]float64 `json:"emotion_scores"`

	// DominantEmotion is the highest scoring category, or "neutral" when no
	// category received any signal.
	DominantEmotion string `json:"dominant_emotion"`

	// Valence is the signed document sentiment in [-1,1]; Arousal is its
	// unsigned intensity in [0,1].
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`

	// ThemeTags are salient keywords, most salient first. Order carries no meaning
	// for consumers.
	ThemeTags []string `json:"theme_tags"`

	// Summary holds the top ranked sentences in their original order.
	Summary []string `json:"summary"`

	SentenceCount int `json:"sentence_count"`
	WordCount     int `json:"word_count"`
}

// NeutralEmotion is reported as the dominant emotion when nothing scored.
const NeutralEmotion = "neutral"

// Clone returns a deep copy of the report.
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.EmotionScores != nil {
		c.EmotionScores = make(map[string]float64, len(r.EmotionScores))
		for k, v := range r.EmotionScores {
			c.EmotionScores[k] = v
		}
	}
	c.ThemeTags = append([]string(nil), r.ThemeTags...)
	c.Summary = append([]string(nil), r.Summary...)
	return &c
}

// EmotionVector returns the scores for the given categories in order, which is
// the layout used for emotional-profile similarity.
func (r *AnalysisReport) EmotionVector(categories []string) []float32 {
	vec := make([]float32, len(categories))
	if r == nil {
		return vec
	}
	for i, c := range categories {
		vec[i] = float32(r.EmotionScores[c])
	}
	return vec
}
