package openai

import (
	"strings"
	"unicode"
)

// scrubString drops control characters other than newline and tab, which some
// OpenAI-compatible servers reject inside JSON payloads.
func scrubString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// cleanResponse strips markdown code fences and surrounding whitespace that
// chat models sometimes wrap around plain answers.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " .") {
			s = s[i+1:] // language tag line such as ```text
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
