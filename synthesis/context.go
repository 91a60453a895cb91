package synthesis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docqa/core"
)

// minBlockRunes is the smallest truncated evidence block worth sending.
const minBlockRunes = 40

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return utf8.RuneCountInString(text) / charsPerToken
}

// BuildContext formats hits as numbered evidence blocks, "[n] (page p) text",
// best first, until the token budget is spent. The block that crosses the
// budget is cut to the remaining space and ends the context.
// Returns the context and the chunks it includes.
func BuildContext(hits []core.Hit, maxTokens, charsPerToken int) (string, []*core.Chunk) {
	budget := maxTokens * charsPerToken // in runes
	var (
		blocks []string
		used   []*core.Chunk
	)
	for i, h := range hits {
		text := strings.TrimSpace(h.Chunk.Text)
		size := utf8.RuneCountInString(text)
		if size <= budget {
			blocks = append(blocks, formatBlock(i+1, h.Chunk, text))
			used = append(used, h.Chunk)
			budget -= size
			continue
		}
		if budget >= minBlockRunes {
			blocks = append(blocks, formatBlock(i+1, h.Chunk, cutRunes(text, budget)))
			used = append(used, h.Chunk)
		}
		break
	}
	return strings.Join(blocks, "\n\n"), used
}

func formatBlock(n int, chunk *core.Chunk, text string) string {
	return fmt.Sprintf("[%d] (%s) %s", n, chunk.Ref(), text)
}

// cutRunes shortens s to at most n runes, ellipsis included, backing off to
// the last word boundary.
func cutRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	cut := string(r[:n-1])
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
