package model

import (
	"strings"
)

// Citation is one verbatim passage returned by the retrieval stage
type Citation struct {
	Document string `json:"document"` // Display name of the source document
	Citation string `json:"citation"` // Section, chapter, page, etc.
	Extract  string `json:"extract"`  // Verbatim source text, never paraphrased
}

// RetrievalResult is the wire contract between the two stages.
// Results keep the order the retrieval stage produced.
type RetrievalResult struct {
	Query   string     `json:"query"`
	Results []Citation `json:"results"`
}

// Empty reports whether no passages were found
func (r RetrievalResult) Empty() bool {
	return len(r.Results) == 0
}

// Documents returns the distinct document names in result order
func (r RetrievalResult) Documents() []string {
	seen := make(map[string]bool)
	var docs []string
	for _, c := range r.Results {
		if !seen[c.Document] {
			seen[c.Document] = true
			docs = append(docs, c.Document)
		}
	}
	return docs
}

// DefaultClosingPrompt is appended to every summary
const DefaultClosingPrompt = "Would you like more details on any specific aspect?"

// SummaryResult is the plain-language answer derived from one RetrievalResult
type SummaryResult struct {
	Body          string `json:"body"`
	ClosingPrompt string `json:"closing_prompt"`
	Raw           string `json:"raw"` // Body and closing prompt as shown and stored
}

// NewSummaryResult assembles a summary with its closing prompt
func NewSummaryResult(body, closing string) SummaryResult {
	body = strings.TrimSpace(body)
	closing = strings.TrimSpace(closing)
	raw := closing
	if body != "" {
		raw = body + "\n\n" + closing
	}
	return SummaryResult{
		Body:          body,
		ClosingPrompt: closing,
		Raw:           raw,
	}
}
