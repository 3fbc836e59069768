// Package textprep cleans raw transcripts before they are handed to a
// model, and derives short display titles from them afterwards.
//
// Slack exports and pasted threads arrive with CRLF line endings, long
// runs of blank lines, and the occasional markdown table; all of it is
// noise that wastes prompt tokens without helping the summary.
package textprep

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Matches a table row and a separator row like: | --- | :---: | ---: |
var (
	mdTableRow = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	mdSepRow   = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)
)

// multiBlankRE collapses runs of three or more newlines to a paragraph break.
var multiBlankRE = regexp.MustCompile(`\n{3,}`)

// NormalizeTranscript canonicalizes line endings, flattens markdown
// tables into one-line facts, collapses blank-line runs, and trims the
// result. The returned text is what gets tokenized and billed.
func NormalizeTranscript(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = FlattenMarkdownTables(s)
	s = multiBlankRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// FlattenMarkdownTables converts markdown table blocks into one-line
// facts, skipping header and '---' separator lines, and preserves
// non-table lines as-is.
func FlattenMarkdownTables(s string) string {
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		// Detect a markdown table by header row + separator row
		if mdTableRow.MatchString(line) && i+1 < len(lines) && mdSepRow.MatchString(strings.TrimSpace(lines[i+1])) {
			// Skip header + separator
			i += 2

			// Consume body rows; keep cells but drop pipes
			for i < len(lines) && mdTableRow.MatchString(strings.TrimSpace(lines[i])) {
				row := strings.TrimSpace(lines[i])
				row = strings.TrimPrefix(row, "|")
				row = strings.TrimSuffix(row, "|")
				cells := strings.Split(row, "|")
				for j := range cells {
					cells[j] = strings.TrimSpace(cells[j])
				}
				cleaned := strings.TrimSpace(strings.Join(cells, " "))
				if cleaned != "" {
					out = append(out, cleaned)
				}
				i++
			}
			continue
		}

		out = append(out, lines[i])
		i++
	}

	return strings.Join(out, "\n")
}

// CollapseWhitespaceLines trims each line, collapses internal whitespace
// to a single space, and drops empty lines entirely. Used for the text
// embedded in tagging prompts, where layout carries no signal.
func CollapseWhitespaceLines(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		parts := strings.Fields(ln)
		if len(parts) == 0 {
			continue
		}
		out = append(out, strings.Join(parts, " "))
	}
	return strings.Join(out, "\n")
}

// --- Title generation ---

// Extract Unicode letters with optional trailing numbers (e.g., "q3roadmap2026").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

const (
	titleMaxWords = 8
	titleMaxRunes = 60
)

// Titler derives display titles with a configurable casing locale.
type Titler struct {
	Locale language.Tag
}

// Title derives a concise title from the first meaningful words of the
// text. Returns "" when nothing usable remains after filtering.
func (t Titler) Title(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(text), -1)
	if len(toks) == 0 {
		return ""
	}

	loc := t.Locale
	if loc == language.Und {
		loc = language.English
	}
	titleCaser := cases.Title(loc)
	out := make([]string, 0, titleMaxWords)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= titleMaxWords {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return clipRunes(strings.Join(out, " "), titleMaxRunes)
}

// clipRunes truncates s to at most max runes.
func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
