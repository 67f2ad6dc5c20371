package analysis

import (
	"math"
	"strings"
)

// sentenceSentiment is the VADER-style score of one sentence.
type sentenceSentiment struct {
	compound float64
	// Lexicon mass split by polarity, plus the count of neutral words.
	pos, neg float64
	neutral  int
}

func scoreSentence(s sentence) sentenceSentiment {
	toks := s.words
	vals := make([]float64, len(toks))

	for i, tok := range toks {
		v, ok := valenceLexicon[tok]
		if !ok || boosters[tok] || dampeners[tok] {
			continue
		}

		if i > 0 {
			prev := toks[i-1]
			switch {
			case boosters[prev]:
				v += sign(v) * boosterIncrement
			case dampeners[prev]:
				v -= sign(v) * boosterIncrement
			}
		}

		for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
			if isNegation(toks[j]) {
				v *= negationScalar
				break
			}
		}

		vals[i] = v
	}

	if but := indexOf(toks, "but"); but >= 0 {
		for i := range vals {
			if i < but {
				vals[i] *= butBefore
			} else if i > but {
				vals[i] *= butAfter
			}
		}
	}

	var res sentenceSentiment
	var sum float64
	for _, v := range vals {
		sum += v
		switch {
		case v > 0:
			res.pos += v
		case v < 0:
			res.neg += -v
		default:
			res.neutral++
		}
	}

	if sum > 0 {
		sum += exclaimIncrement * float64(s.exclaims)
	} else if sum < 0 {
		sum -= exclaimIncrement * float64(s.exclaims)
	}

	res.compound = sum / math.Sqrt(sum*sum+normalizationAlpha)
	return res
}

// documentSentiment aggregates sentences weighted by their word count.
type documentSentiment struct {
	valence, arousal float64
	pos, neg         float64 // share of lexicon mass in [0,1]
}

func scoreDocument(sentences []sentence) documentSentiment {
	var doc documentSentiment
	var weight, posMass, negMass float64
	var neutral int

	for _, s := range sentences {
		sc := scoreSentence(s)
		w := float64(len(s.words))
		doc.valence += sc.compound * w
		doc.arousal += math.Abs(sc.compound) * w
		weight += w
		posMass += sc.pos
		negMass += sc.neg
		neutral += sc.neutral
	}

	if weight > 0 {
		doc.valence /= weight
		doc.arousal /= weight
	}

	if total := posMass + negMass + float64(neutral); total > 0 {
		doc.pos = posMass / total
		doc.neg = negMass / total
	}

	doc.valence = clamp(doc.valence, -1, 1)
	doc.arousal = clamp(doc.arousal, 0, 1)
	return doc
}

func isNegation(tok string) bool {
	return negations[tok] || strings.HasSuffix(tok, "n't")
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func indexOf(toks []string, want string) int {
	for i, t := range toks {
		if t == want {
			return i
		}
	}
	return -1
}
