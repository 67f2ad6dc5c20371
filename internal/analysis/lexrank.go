package analysis

import (
	"math"
	"sort"
)

// rankPrecision is the grid centrality scores are rounded to before ranking,
// so scores differing only by float noise tie and fall back to position.
const rankPrecision = 1e9

// lexRank returns the centrality of each sentence using a thresholded cosine
// similarity graph over tf-idf vectors and damped power iteration.
func lexRank(sentences []sentence, cfg Config) []float64 {
	n := len(sentences)
	if n == 0 {
		return nil
	}

	vectors := tfidf(sentences)

	// Row-normalized transition matrix.
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		var rowSum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if sim := cosine(vectors[i], vectors[j]); sim >= cfg.SimilarityThreshold && sim > 0 {
				matrix[i][j] = sim
				rowSum += sim
			}
		}
		if rowSum == 0 {
			// Dangling sentence: spread its weight uniformly.
			for j := range matrix[i] {
				matrix[i][j] = 1 / float64(n)
			}
			continue
		}
		for j := range matrix[i] {
			matrix[i][j] /= rowSum
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}

	teleport := (1 - cfg.Damping) / float64(n)
	next := make([]float64, n)
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		for i := 0; i < n; i++ {
			var acc float64
			for j := 0; j < n; j++ {
				acc += matrix[j][i] * scores[j]
			}
			next[i] = teleport + cfg.Damping*acc
		}

		var delta float64
		for i := range scores {
			delta += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores
		if delta < cfg.Tolerance {
			break
		}
	}

	return scores
}

// selectSummary picks the top k sentences by score and returns them in their
// original order.
func selectSummary(sentences []sentence, scores []float64, k int) []string {
	n := len(sentences)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	if n > k {
		rounded := make([]float64, n)
		for i, s := range scores {
			rounded[i] = math.Round(s*rankPrecision) / rankPrecision
		}
		sort.Slice(idx, func(a, b int) bool {
			sa, sb := rounded[idx[a]], rounded[idx[b]]
			if sa != sb {
				return sa > sb
			}
			return idx[a] < idx[b]
		})
		idx = idx[:k]
		sort.Ints(idx)
	}

	out := make([]string, len(idx))
	for i, at := range idx {
		out[i] = sentences[at].text
	}
	return out
}

// tfidf builds sparse term weights per sentence over content words with
// idf = 1 + ln((1+N)/(1+df)).
func tfidf(sentences []sentence) []map[string]float64 {
	n := float64(len(sentences))
	df := make(map[string]int)
	tfs := make([]map[string]float64, len(sentences))

	for i, s := range sentences {
		tf := make(map[string]float64)
		for _, w := range s.words {
			if isContentWord(w) {
				tf[w]++
			}
		}
		for w := range tf {
			df[w]++
		}
		tfs[i] = tf
	}

	for _, tf := range tfs {
		for w, c := range tf {
			tf[w] = c * (1 + math.Log((1+n)/(1+float64(df[w]))))
		}
	}
	return tfs
}

// cosine iterates terms in sorted order so the float sum is reproducible.
func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for _, w := range sortedKeys(a) {
		va := a[w]
		na += va * va
		dot += va * b[w]
	}
	for _, w := range sortedKeys(b) {
		nb += b[w] * b[w]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
