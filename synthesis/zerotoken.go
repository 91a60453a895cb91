package synthesis

import (
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

// FieldAnswer builds the answer for a question settled by an extracted field.
// No retrieval or generation is involved, so TokensUsed stays 0.
func FieldAnswer(qt core.QueryType, field core.StructuredField) *core.Answer {
	answer := &core.Answer{
		Text:       fmt.Sprintf("%s: %s", field.Key.Label(), field.Value),
		Confidence: field.Confidence,
		Evidence: []core.Evidence{{
			ChunkId: field.ChunkId,
			Ordinal: field.Ordinal,
			Page:    field.Page,
			Ref:     field.Ref,
			Excerpt: cutRunes(strings.TrimSpace(field.Snippet), excerptRunes),
		}},
		Path:      core.PathZeroToken,
		QueryType: qt,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "path: %s, answered from the extracted %s field on %s without retrieval or a language model\n",
		core.PathZeroToken, field.Key, field.Ref)
	fmt.Fprintf(&b, "source chunk %d, field confidence %.3f", field.Ordinal, field.Confidence)
	if field.Snippet != "" {
		fmt.Fprintf(&b, "\nstatement: %s", cutRunes(strings.TrimSpace(field.Snippet), excerptRunes))
	}
	answer.Explanation = b.String()
	return answer
}
