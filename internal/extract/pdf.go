package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ppiankov/lexbrief/internal/model"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler (brew install poppler / apt install poppler-utils)")

// CommandRunner runs an external command and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name with args
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// PDFExtractor extracts text with pdftotext, keeping page breaks
type PDFExtractor struct {
	tool   string
	runner CommandRunner
}

// NewPDFExtractor creates a PDF extractor
func NewPDFExtractor(tool string, runner CommandRunner) *PDFExtractor {
	if tool == "" {
		tool = "pdftotext"
	}
	return &PDFExtractor{tool: tool, runner: runner}
}

// MediaType returns pdf
func (e *PDFExtractor) MediaType() model.MediaType {
	return model.MediaPDF
}

// Extract writes the bytes to a temp file and converts it.
// pdftotext separates pages with form feeds, which become Pages.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, name string) (*Document, error) {
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF")) {
		return nil, fmt.Errorf("%s is not a PDF", name)
	}

	tmp, err := os.CreateTemp("", "lexbrief-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, e.tool, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return nil, err
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext ends the last page with a form feed too
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	for i := range pages {
		pages[i] = normalizeWhitespace(pages[i])
	}

	return &Document{
		Title: firstLine(pages),
		Pages: pages,
	}, nil
}

// firstLine returns the first short non-empty line, used as a title hint
func firstLine(pages []string) string {
	for _, p := range pages {
		for _, line := range strings.Split(p, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && len(line) <= 200 {
				return line
			}
		}
	}
	return ""
}

// normalizeWhitespace collapses runs of spaces inside lines and drops blank-line runs
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
