package importer

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// wikiLink matches [[target]] and [[target|label]].
var wikiLink = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)

// StripWikiLinks turns wiki-style links into their label, or their target
// when the label is empty.
func StripWikiLinks(content string) string {
	return wikiLink.ReplaceAllStringFunc(content, func(link string) string {
		m := wikiLink.FindStringSubmatch(link)
		if label := strings.TrimSpace(m[2]); label != "" {
			return label
		}
		return strings.TrimSpace(m[1])
	})
}

// ParsedEntry is one journal file ready to become a memory.
type ParsedEntry struct {
	// RelativePath is the path relative to the import root directory.
	RelativePath string

	// Title is the frontmatter title, the first H1 heading or the file name.
	Title string

	// Content is the prose of the entry with Markdown markup removed.
	Content string

	// Owner, Recipient and Message come from frontmatter when present.
	Owner     string
	Recipient string
	Message   string

	// DeliveryAt is the frontmatter deliver_at time, nil when absent.
	DeliveryAt *time.Time
}

// ParseEntry parses a single journal file. relativePath names the entry in
// results and provides the fallback title.
func ParseEntry(content []byte, relativePath string) (*ParsedEntry, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("frontmatter parse error in %s: %w", relativePath, err)
	}

	title := extractString(fm, "title", "")
	if title == "" {
		title = extractH1(body)
	}
	if title == "" {
		title = titleFromPath(relativePath)
	}

	entry := &ParsedEntry{
		RelativePath: relativePath,
		Title:        title,
		Content:      plainText(StripWikiLinks(body)),
		Owner:        extractString(fm, "owner", ""),
		Recipient:    extractString(fm, "recipient", ""),
		Message:      extractString(fm, "message", ""),
	}

	for _, key := range []string{"deliver_at", "delivery_at"} {
		if _, ok := fm[key]; !ok {
			continue
		}
		at, ok := extractTime(fm, key)
		if !ok {
			return nil, fmt.Errorf("%s: unreadable %s %v", relativePath, key, fm[key])
		}
		entry.DeliveryAt = &at
		break
	}
	return entry, nil
}

// splitFrontmatter separates YAML frontmatter (between --- delimiters) from
// the Markdown body. Returns empty map and full text when no frontmatter found.
func splitFrontmatter(text string) (map[string]interface{}, string, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return map[string]interface{}{}, text, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		// No closing delimiter - treat entire file as body.
		return map[string]interface{}{}, text, nil
	}

	fmText := strings.Join(lines[1:closeIdx], "\n")
	fm := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return map[string]interface{}{}, text, fmt.Errorf("invalid YAML: %w", err)
	}

	body := strings.Join(lines[closeIdx+1:], "\n")
	return fm, body, nil
}

// titleFromPath derives a human-readable title from the file name (no extension).
func titleFromPath(rel string) string {
	base := filepath.Base(rel)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(name)
}

// extractH1 returns the text of the first ATX heading (# ...) found in the body.
func extractH1(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

var (
	headingRe  = regexp.MustCompile(`^#{1,6}\s+`)
	listItemRe = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+`)
	emphasisRe = regexp.MustCompile(`(\*\*|__|\*|_|` + "`" + `)`)
)

// plainText drops heading, list, quote and emphasis markers. Headings and
// list items end a sentence so the analyzer does not run them together.
func plainText(body string) string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		marked := false
		if headingRe.MatchString(trimmed) {
			trimmed = headingRe.ReplaceAllString(trimmed, "")
			marked = true
		}
		if listItemRe.MatchString(trimmed) {
			trimmed = listItemRe.ReplaceAllString(trimmed, "")
			marked = true
		}
		trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, ">"))
		trimmed = emphasisRe.ReplaceAllString(trimmed, "")
		if marked && trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
			trimmed += "."
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(collapseBlankLines(out))
}

func collapseBlankLines(lines []string) string {
	var b strings.Builder
	blank := false
	for _, line := range lines {
		if line == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = false
		b.WriteString(line)
	}
	return b.String()
}

// extractTime reads a time from frontmatter, trying several common layouts.
func extractTime(fm map[string]interface{}, key string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
	}

	var s string
	switch v := fm[key].(type) {
	case time.Time:
		return v, true
	case string:
		s = v
	default:
		s = fmt.Sprintf("%v", v)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractString pulls a string value from frontmatter by key with a default.
func extractString(fm map[string]interface{}, key, defaultVal string) string {
	v, ok := fm[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return defaultVal
}
