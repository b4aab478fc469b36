package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/model"
)

// Renderer writes outcomes to the terminal and to files
type Renderer struct {
	out           io.Writer
	showRetrieval bool
}

// NewRenderer creates a renderer printing to out
func NewRenderer(out io.Writer, showRetrieval bool) *Renderer {
	return &Renderer{out: out, showRetrieval: showRetrieval}
}

// RenderSummary prints the answer. The retrieval result is printed when
// requested or when it is all that is available.
func (r *Renderer) RenderSummary(o *Outcome) {
	if r.showRetrieval || o.Summary == nil {
		fmt.Fprintln(r.out, FormatRetrieval(o.Retrieval))
	}

	if o.Summary == nil {
		if o.SummaryErr != nil {
			fmt.Fprintf(r.out, "Summary unavailable: %v\n", o.SummaryErr)
		}
		return
	}
	fmt.Fprintln(r.out, o.Summary.Raw)

	for _, w := range o.Warnings {
		fmt.Fprintf(r.out, "\nwarning: %s\n", w)
	}
}

// FormatRetrieval renders citations as markdown
func FormatRetrieval(res *model.RetrievalResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Retrieved passages for: %s\n", res.Query)
	if res.Empty() {
		b.WriteString("\nNo passages found.\n")
		return b.String()
	}
	for i, c := range res.Results {
		fmt.Fprintf(&b, "\n%d. **%s**", i+1, c.Document)
		if c.Citation != "" {
			fmt.Fprintf(&b, " (%s)", c.Citation)
		}
		b.WriteString("\n\n")
		for _, line := range strings.Split(c.Extract, "\n") {
			b.WriteString("   > " + line + "\n")
		}
	}
	return b.String()
}

type outcomeJSON struct {
	Query        string                 `json:"query"`
	Retrieval    *model.RetrievalResult `json:"retrieval"`
	Summary      *model.SummaryResult   `json:"summary,omitempty"`
	SummaryError string                 `json:"summary_error,omitempty"`
	EntryID      string                 `json:"entry_id,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// MarshalOutcome encodes an outcome for JSON output
func MarshalOutcome(o *Outcome) ([]byte, error) {
	v := outcomeJSON{
		Query:     o.Query,
		Retrieval: o.Retrieval,
		Summary:   o.Summary,
		Warnings:  o.Warnings,
	}
	if o.SummaryErr != nil {
		v.SummaryError = o.SummaryErr.Error()
	}
	if o.Entry != nil {
		v.EntryID = o.Entry.ID
	}
	return json.MarshalIndent(v, "", "  ")
}

// RenderJSON writes the outcome as JSON to path
func (r *Renderer) RenderJSON(o *Outcome, path string) error {
	data, err := MarshalOutcome(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return writeFile(path, data)
}

// RenderMarkdown writes the outcome in the history file layout
func (r *Renderer) RenderMarkdown(o *Outcome, path string) error {
	body := FormatRetrieval(o.Retrieval)
	if o.Summary != nil {
		body = o.Summary.Raw
	}
	return writeFile(path, history.Encode(o.Query, body))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
