package synthesis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docqa/lexicon"
)

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?\s+`)

type span struct{ start, end int } // byte offsets

func sentenceSpans(text string) []span {
	var spans []span
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start, loc[1]})
		start = loc[1]
	}
	if start < len(text) {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

// Excerpt returns at most window runes of text built from whole sentences
// around the sentence that best covers the query's content words.
// The first sentence wins ties.
func Excerpt(text, query string, window int) string {
	text = strings.TrimSpace(text)
	spans := sentenceSpans(text)
	if len(spans) == 0 || window <= 0 {
		return ""
	}

	terms := lexicon.Terms(query)
	best, bestScore := 0, -1.0
	for i, s := range spans {
		score := lexicon.Coverage(terms, lexicon.Terms(text[s.start:s.end]))
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	between := func(lo, hi int) string {
		return strings.TrimSpace(text[spans[lo].start:spans[hi].end])
	}
	size := func(lo, hi int) int {
		return utf8.RuneCountInString(between(lo, hi))
	}

	lo, hi := best, best
	if size(lo, hi) > window {
		return cutRunes(between(lo, hi), window)
	}
	for {
		grew := false
		if hi+1 < len(spans) && size(lo, hi+1) <= window {
			hi++
			grew = true
		}
		if lo > 0 && size(lo-1, hi) <= window {
			lo--
			grew = true
		}
		if !grew {
			break
		}
	}
	return between(lo, hi)
}
