// Package export renders history entries as downloadable files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/model"
)

// Format names a download format
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts "markdown", "md" or "pdf"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q (supported: markdown, pdf)", s)
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	if f == FormatPDF {
		return ".pdf"
	}
	return ".md"
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/markdown; charset=utf-8"
}

// FileName suggests a download name for the entry
func FileName(entry *model.HistoryEntry, f Format) string {
	return "query_" + entry.ID + f.Extension()
}

// Markdown returns the entry in the persisted history layout
func Markdown(entry *model.HistoryEntry) []byte {
	return history.Encode(entry.Query, entry.Result.Raw)
}

// Write renders the entry in format f to w
func Write(w io.Writer, entry *model.HistoryEntry, f Format) error {
	if f == FormatPDF {
		return writePDF(w, entry)
	}
	_, err := w.Write(Markdown(entry))
	return err
}

// ToFile writes the entry to path, creating parent directories
func ToFile(entry *model.HistoryEntry, f Format, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, entry, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// PDF writes the entry as a PDF document at path
func PDF(entry *model.HistoryEntry, path string) error {
	return ToFile(entry, FormatPDF, path)
}

func writePDF(w io.Writer, entry *model.HistoryEntry) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("lexbrief answer "+entry.ID, false)
	pdf.SetAuthor("lexbrief", false)
	pdf.SetCreator("lexbrief", false)
	pdf.AddPage()

	// Core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr("Query: "+entry.Query), "", "L", false)
	pdf.Ln(2)

	if !entry.CreatedAt.IsZero() {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, tr("Asked on "+entry.CreatedAt.Local().Format("02 Jan 2006 15:04")))
		pdf.Ln(10)
	}

	writeMarkdownBody(pdf, tr, entry.Result.Raw)

	if entry.Retrieval != nil && !entry.Retrieval.Empty() {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Sources")
		pdf.Ln(9)
		for i, c := range entry.Retrieval.Results {
			pdf.SetFont("Helvetica", "B", 10)
			ref := fmt.Sprintf("%d. %s", i+1, c.Document)
			if c.Citation != "" {
				ref += " (" + c.Citation + ")"
			}
			pdf.MultiCell(0, 5, tr(ref), "", "L", false)
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 5, tr(c.Extract), "", "L", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// writeMarkdownBody maps headings and bullets onto font changes
func writeMarkdownBody(pdf *fpdf.Fpdf, tr func(string) string, body string) {
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimRight(line, " \t")
		switch {
		case line == "":
			pdf.Ln(3)
		case strings.HasPrefix(line, "### "):
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 7, tr(strings.TrimPrefix(line, "### ")), "", "L", false)
		case strings.HasPrefix(line, "## "):
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 7, tr(strings.TrimPrefix(line, "## ")), "", "L", false)
		case strings.HasPrefix(line, "# "):
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 8, tr(strings.TrimPrefix(line, "# ")), "", "L", false)
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr("• "+stripEmphasis(line[2:])), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(stripEmphasis(line)), "", "L", false)
		}
	}
}

var emphasisReplacer = strings.NewReplacer("**", "", "__", "", "`", "")

func stripEmphasis(s string) string {
	return emphasisReplacer.Replace(s)
}
