package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"what", "is", "the", "coverage", "limit"}, Words("What is the coverage limit?"))
	assert.Equal(t, []string{"claim", "within", "30", "day"}, Words("Claims within 30 days"))
	assert.Equal(t, []string{"50,000"}, Words("$50,000"))
	assert.Empty(t, Words("  ...  "))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"long", "policy", "term"}, Terms("How long is the policy term?"))
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"claims":     "claim",
		"policies":   "policy",
		"class":      "class",
		"bonus":      "bonus",
		"basis":      "basis",
		"is":         "is",
		"exclusions": "exclusion",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Stem(in))
		})
	}
}

func TestPhrase_In(t *testing.T) {
	words := Words("Injuries that are not covered by this policy")

	assert.True(t, NewPhrase("not covered").In(words))
	assert.True(t, NewPhrase("injury").In(words), "plural forms should match singular keywords")
	assert.False(t, NewPhrase("covered not").In(words))
	assert.False(t, NewPhrase("coverage").In(words))
	assert.False(t, Phrase{}.In(words))
	assert.Equal(t, 2, NewPhrase("not covered").Len())
}

func TestNewPhrases_SkipsBlank(t *testing.T) {
	phrases := NewPhrases([]string{"premium", "", "  ", "file a claim"})
	assert.Len(t, phrases, 2)
	assert.True(t, AnyIn(phrases, Words("How do I file a claim?")))
	assert.False(t, AnyIn(phrases, Words("unrelated")))
}

func TestCoverage(t *testing.T) {
	assert.Equal(t, 0.0, Coverage(nil, []string{"x"}))
	assert.Equal(t, 1.0, Coverage([]string{"policy", "term"}, []string{"term", "policy", "year"}))
	assert.Equal(t, 0.5, Coverage([]string{"policy", "term", "term"}, []string{"policy"}))
}

func TestContainsAllTerms(t *testing.T) {
	assert.True(t, ContainsAllTerms("The policy term is 12 months.", "policy term"))
	assert.False(t, ContainsAllTerms("The policy is valid.", "policy term"))
	assert.False(t, ContainsAllTerms("anything", "the a an"))
}
