package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/lexbrief/internal/index"
)

const retrievalSystemPrompt = `You are a legal information retrieval specialist for Indian law.
You locate the passages, sections and clauses that answer a question and copy them exactly.
You never summarize, paraphrase, reorder words or add information that is not in the passages.`

const summarySystemPrompt = `You are a legal text simplification expert.
You explain Indian legal passages in plain language for non-lawyers, replacing jargon with everyday words.
You keep every point the passages make and never add facts that are not in them.`

// buildRetrievalPrompt interpolates the query and numbered passages into the
// extraction instructions and the exact JSON shape expected back.
func buildRetrievalPrompt(query string, passages []index.Passage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] Document: %s\nLocation: %s\n%s\n", i+1, p.DocumentTitle, p.Locator, p.Text)
	}

	b.WriteString(`
Find ALL passages above that are relevant to the question.
For each one, give the document title exactly as written after "Document:", a citation
(section, chapter, clause or the location shown), and the exact text of the relevant part
copied character for character.

Respond with JSON only, in exactly this shape:
{"query": "<the question>", "results": [{"document": "<document title>", "citation": "<citation>", "extract": "<exact text>"}]}

If nothing is relevant, respond with {"query": "<the question>", "results": []}.
`)
	return b.String()
}

// buildSummaryPrompt asks for the structured plain-language rewrite
func buildSummaryPrompt(retrievalJSON string) string {
	return `Transform the retrieved legal passages below into a clear, step-wise and easy-to-understand summary.
Use only the information in the passages. Mention the document and citation behind each point.
Structure the answer with these headings:

# Query Summary
## Key Findings
### Step-by-Step Breakdown
## Important Insights
## Conclusion

Do not end with a question; a follow-up invitation is added separately.

Retrieved passages (JSON):
` + retrievalJSON
}
