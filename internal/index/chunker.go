package index

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunk is a piece of a page with its locator
type Chunk struct {
	Locator  string
	Content  string
	Position int
}

// Chunker splits pages into overlapping chunks, breaking on whitespace where possible
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Invalid sizes fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks each page. paged controls whether locators name pages.
func (c *Chunker) Split(pages []string, paged bool) []Chunk {
	var chunks []Chunk
	position := 0
	for pageNo, page := range pages {
		parts := c.splitText(strings.TrimSpace(page))
		for i, part := range parts {
			chunks = append(chunks, Chunk{
				Locator:  locator(paged, pageNo+1, i+1, len(parts)),
				Content:  part,
				Position: position,
			})
			position++
		}
	}
	return chunks
}

func locator(paged bool, page, part, parts int) string {
	switch {
	case paged && parts > 1:
		return fmt.Sprintf("page %d, part %d", page, part)
	case paged:
		return fmt.Sprintf("page %d", page)
	case parts > 1:
		return fmt.Sprintf("part %d", part)
	default:
		return "full text"
	}
}

// splitText works on byte offsets but never cuts inside a UTF-8 sequence
func (c *Chunker) splitText(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	var parts []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			if part := strings.TrimSpace(text[start:]); part != "" {
				parts = append(parts, part)
			}
			break
		}

		// Prefer to break on whitespace in the last quarter of the window
		if cut := strings.LastIndexAny(text[start+c.size*3/4:end], " \n\t"); cut >= 0 {
			end = start + c.size*3/4 + cut
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		if end <= start {
			end = start + c.size
			for end < len(text) && !utf8.RuneStart(text[end]) {
				end++
			}
		}

		if part := strings.TrimSpace(text[start:end]); part != "" {
			parts = append(parts, part)
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return parts
}
