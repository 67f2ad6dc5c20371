package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

// sentence is one unit of the summary graph.
type sentence struct {
	text  string
	words []string
	// exclaims counts trailing exclamation marks, capped at 3.
	exclaims int
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "st.": true,
	"jr.": true, "sr.": true, "e.g.": true, "i.e.": true, "etc.": true,
	"vs.": true,
}

// splitSentences breaks text on terminal punctuation followed by whitespace or
// end of input, and on blank lines.
func splitSentences(text string) []sentence {
	var out []sentence
	for _, para := range paragraphBreak.Split(text, -1) {
		for _, raw := range splitParagraph(para) {
			raw = strings.Join(strings.Fields(raw), " ")
			if raw == "" {
				continue
			}
			out = append(out, sentence{
				text:     raw,
				words:    words(raw),
				exclaims: trailingExclaims(raw),
			})
		}
	}
	return out
}

func splitParagraph(p string) []string {
	runes := []rune(p)
	var parts []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && (isTerminal(runes[end+1]) || isCloser(runes[end+1])) {
			end++
		}
		if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}
		if runes[i] == '.' && end == i && endsWithAbbreviation(runes[start:end+1]) {
			i = end
			continue
		}
		parts = append(parts, string(runes[start:end+1]))
		start = end + 1
		i = end
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '’' || r == '”'
}

func endsWithAbbreviation(chunk []rune) bool {
	fields := strings.Fields(string(chunk))
	if len(fields) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(fields[len(fields)-1])]
}

func trailingExclaims(s string) int {
	n := strings.Count(s, "!")
	if n > 3 {
		n = 3
	}
	return n
}

// words returns lowercased runs of letters and digits, keeping apostrophes
// that sit between letters ("don't", "i'm").
func words(s string) []string {
	runes := []rune(strings.ToLower(s))
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, r)
		case (r == '\'' || r == '’') && len(cur) > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			cur = append(cur, '\'')
		default:
			flush()
		}
	}
	flush()
	return out
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
