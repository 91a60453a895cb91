package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// line is one line of segment text with its rune offset in Document.Text.
type line struct {
	text   string
	offset int
}

// statement is a sentence within a line.
type statement struct {
	text   string
	offset int
}

func splitLines(text string, offset int) []line {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	for i, r := range raw {
		lines[i] = line{text: r, offset: offset}
		offset += utf8.RuneCountInString(r) + 1
	}
	return lines
}

// sentences splits a line after ., ! or ? when the next word starts with an
// upper-case letter or digit. Leading whitespace is dropped from each sentence.
func sentences(l line) []statement {
	runes := []rune(l.text)
	var out []statement
	start := 0
	emit := func(end int) {
		s := start
		for s < end && unicode.IsSpace(runes[s]) {
			s++
		}
		text := strings.TrimRightFunc(string(runes[s:end]), unicode.IsSpace)
		if text != "" {
			out = append(out, statement{text: text, offset: l.offset + s})
		}
	}
	for i := 0; i+2 < len(runes); i++ {
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && runes[i+1] == ' ' &&
			(unicode.IsUpper(runes[i+2]) || unicode.IsDigit(runes[i+2])) {
			emit(i + 1)
			start = i + 1
		}
	}
	emit(len(runes))
	return out
}

// itemText strips list markers such as "-", "*", "•" and "3." or "(a)".
func itemText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•·–—▪◦ ")
	if i := strings.IndexAny(s, ".)"); i > 0 && i <= 3 && isMarker(s[:i]) {
		s = strings.TrimSpace(s[i+1:])
	}
	return s
}

func isMarker(s string) bool {
	s = strings.TrimPrefix(s, "(")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && !(len(s) == 1 && unicode.IsLetter(r)) {
			return false
		}
	}
	return true
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n-1])) + "…"
}
