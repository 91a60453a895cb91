package synthesis

import (
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

const baseSystemPrompt = `You are a document analysis assistant for insurance, legal, HR and compliance documents.
Answer the question using only the numbered evidence passages you are given.
Cite the passages you rely on by number, for example [1] or [2].
If the evidence does not contain the answer, say so plainly instead of guessing.
Keep the answer short and quote amounts, dates and periods exactly as written.
Finish with a final line of the form "Confidence: 0.0-1.0" rating how well the evidence supports your answer.`

var typeFocus = map[core.QueryType]string{
	core.QueryCoverage:      "Focus on coverage details, limits and what is included in the policy.",
	core.QueryExclusion:     "Pay special attention to exclusions, limitations and what is NOT covered.",
	core.QueryClaimsProcess: "Focus on claims procedures, requirements, deadlines and the documents needed.",
	core.QueryPremium:       "Focus on premium amounts, payment frequency and due dates.",
	core.QueryDuration:      "Focus on the policy period, start and end dates, renewal and termination.",
	core.QueryDefinitions:   "Quote the definition as written and name the term it defines.",
	core.QueryPolicyNumber:  "Return the policy or certificate number exactly as written.",
}

// SystemPrompt returns the system prompt for a query type.
func SystemPrompt(qt core.QueryType) string {
	focus, ok := typeFocus[qt]
	if !ok {
		return baseSystemPrompt
	}
	return baseSystemPrompt + "\n\n" + focus
}

// userPrompt lays out the evidence ahead of the question.
func userPrompt(query, evidence string) string {
	var b strings.Builder
	b.WriteString("Evidence:\n")
	b.WriteString(evidence)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(query))
	return b.String()
}
