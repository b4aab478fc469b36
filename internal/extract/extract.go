// Package extract turns document bytes into plain text, one Extractor per media type.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/lexbrief/internal/model"
)

// Document is the text of one source, split into pages where the format has them
type Document struct {
	Title string   // Title found in the document, empty if none
	Pages []string // One element for formats without pages
}

// Text joins all pages
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// Empty reports whether no text was extracted
func (d *Document) Empty() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// Extractor converts raw bytes of one media type
type Extractor interface {
	// MediaType returns the media type this extractor handles
	MediaType() model.MediaType

	// Extract returns the document text. name is the file name or URL, used for diagnostics.
	Extract(ctx context.Context, data []byte, name string) (*Document, error)
}

// Registry dispatches to the extractor for a media type
type Registry struct {
	extractors map[model.MediaType]Extractor
}

// NewRegistry creates a registry with all built-in extractors.
// pdfTool is the pdftotext binary, empty for the default.
func NewRegistry(pdfTool string) *Registry {
	r := &Registry{extractors: make(map[model.MediaType]Extractor)}
	r.Register(NewPDFExtractor(pdfTool, ExecRunner{}))
	r.Register(NewDOCXExtractor())
	r.Register(NewPlainTextExtractor())
	r.Register(NewCSVExtractor())
	r.Register(NewJSONExtractor())
	r.Register(NewHTMLExtractor())
	return r
}

// Register adds or replaces the extractor for its media type
func (r *Registry) Register(e Extractor) {
	r.extractors[e.MediaType()] = e
}

// Extract runs the extractor registered for mt
func (r *Registry) Extract(ctx context.Context, mt model.MediaType, data []byte, name string) (*Document, error) {
	e, ok := r.extractors[mt]
	if !ok {
		return nil, fmt.Errorf("no extractor for media type %q", mt)
	}

	doc, err := e.Extract(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", mt, err)
	}
	if doc.Empty() {
		return nil, fmt.Errorf("extract %s: no text in %s", mt, name)
	}
	return doc, nil
}
