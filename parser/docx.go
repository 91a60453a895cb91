package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"code.sajari.com/docconv/v2"
	"github.com/poiesic/docqa/core"
)

// extractDOCX converts the document body to text and groups paragraphs into
// sections, starting a new section at each heading-like paragraph.
func extractDOCX(data []byte) ([]core.Segment, error) {
	body, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCorruptDocument, err)
	}
	return sectionSegments(body), nil
}

func sectionSegments(body string) []core.Segment {
	var (
		segments []core.Segment
		title    string
		lines    []string
	)
	flush := func() {
		text := normalizeWhitespace(strings.Join(lines, "\n"))
		if text != "" {
			segments = append(segments, core.Segment{
				Kind:   core.SegmentSection,
				Number: len(segments) + 1,
				Title:  title,
				Text:   text,
			})
		}
		lines = lines[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			if len(lines) > 0 {
				flush()
			}
			title = strings.TrimSuffix(trimmed, ":")
		}
		lines = append(lines, line)
	}
	flush()
	return segments
}

var (
	numberedHeading = regexp.MustCompile(`^(\d+(\.\d+)*\.?|[IVXLC]+\.)\s+\p{Lu}`)
	keywordHeading  = regexp.MustCompile(`(?i)^(section|article|clause|part|chapter|schedule)\s+[\w.]+`)
)

// isHeading reports whether a paragraph looks like a heading: short, without
// sentence punctuation, and numbered, capitalised or introduced by a section word.
func isHeading(line string) bool {
	if line == "" {
		return false
	}
	words := strings.Fields(line)
	if len(words) > 8 {
		return false
	}
	if strings.ContainsAny(line[len(line)-1:], ".;,?!") {
		return false
	}
	if numberedHeading.MatchString(line) || keywordHeading.MatchString(line) {
		return true
	}
	return isUpperCase(line) || isTitleCase(words)
}

func isUpperCase(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitleCase(words []string) bool {
	capitalised := 0
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			capitalised++
		} else if len(r) > 3 {
			return false // short connectives like "of" and "and" may stay lowercase
		}
	}
	return capitalised > 0
}
