// Package lexicon holds the word-level text handling shared by the embedder,
// the router, the field extractor and retrieval scoring.
package lexicon

import (
	"regexp"
	"strings"
)

// Stop words to filter out of term sets
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "which": true, "how": true, "my": true,
	"i": true, "or": true, "does": true, "there": true, "any": true, "me": true,
	"we": true, "our": true, "your": true, "if": true, "can": true, "will": true,
}

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+(?:[.,]\p{N}+)*`)

// Words lowercases text and splits it into stemmed words, stop words included.
// Use it for phrase matching where word order and function words matter.
func Words(text string) []string {
	raw := wordPattern.FindAllString(strings.ToLower(text), -1)
	words := make([]string, len(raw))
	for i, w := range raw {
		words[i] = Stem(w)
	}
	return words
}

// Terms returns the stemmed content words of text with stop words removed.
func Terms(text string) []string {
	raw := wordPattern.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, w := range raw {
		if !stopWords[w] {
			terms = append(terms, Stem(w))
		}
	}
	return terms
}

// IsStopWord reports whether the lowercased word is a stop word.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Stem strips common English plural endings. It is deliberately light:
// "claims" -> "claim", "policies" -> "policy", "class" stays "class".
func Stem(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case len(word) > 3 && strings.HasSuffix(word, "s") &&
		!strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us") && !strings.HasSuffix(word, "is"):
		return word[:len(word)-1]
	default:
		return word
	}
}

// Phrase is a keyword or multi-word phrase prepared for matching.
type Phrase struct {
	Text  string
	words []string
}

// NewPhrase prepares a keyword for matching against Words output.
func NewPhrase(text string) Phrase {
	return Phrase{Text: text, words: Words(text)}
}

// NewPhrases prepares a list of keywords, skipping blanks.
func NewPhrases(texts []string) []Phrase {
	phrases := make([]Phrase, 0, len(texts))
	for _, t := range texts {
		p := NewPhrase(t)
		if len(p.words) > 0 {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

// Len returns the number of words in the phrase.
func (p Phrase) Len() int {
	return len(p.words)
}

// In reports whether the phrase occurs as a contiguous word run in words.
func (p Phrase) In(words []string) bool {
	n := len(p.words)
	if n == 0 || n > len(words) {
		return false
	}
outer:
	for i := 0; i+n <= len(words); i++ {
		for j := 0; j < n; j++ {
			if words[i+j] != p.words[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// AnyIn reports whether any phrase occurs in words.
func AnyIn(phrases []Phrase, words []string) bool {
	for _, p := range phrases {
		if p.In(words) {
			return true
		}
	}
	return false
}

// Coverage returns the fraction of query terms present in the text terms.
// Returns 0 when the query has no terms.
func Coverage(queryTerms []string, text []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	set := make(map[string]bool, len(text))
	for _, w := range text {
		set[w] = true
	}
	seen := make(map[string]bool, len(queryTerms))
	matched, total := 0, 0
	for _, q := range queryTerms {
		if seen[q] {
			continue
		}
		seen[q] = true
		total++
		if set[q] {
			matched++
		}
	}
	return float64(matched) / float64(total)
}

// ContainsAllTerms checks if all query terms (after filtering) appear in the document
func ContainsAllTerms(document, query string) bool {
	terms := Terms(query)
	return len(terms) > 0 && Coverage(terms, Terms(document)) == 1
}
