package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/lexbrief/internal/model"
)

// PlainTextExtractor handles .txt and .md files
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a plain text extractor
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// MediaType returns txt
func (e *PlainTextExtractor) MediaType() model.MediaType {
	return model.MediaTXT
}

// Extract validates UTF-8 and normalizes line endings
func (e *PlainTextExtractor) Extract(_ context.Context, data []byte, name string) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8 text", name)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	return &Document{Pages: []string{strings.TrimSpace(text)}}, nil
}

// CSVExtractor renders each record as "header: value" pairs on one line
type CSVExtractor struct{}

// NewCSVExtractor creates a CSV extractor
func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

// MediaType returns csv
func (e *CSVExtractor) MediaType() model.MediaType {
	return model.MediaCSV
}

// Extract treats the first row as the header
func (e *CSVExtractor) Extract(_ context.Context, data []byte, name string) (*Document, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", name, err)
	}
	if len(records) == 0 {
		return &Document{Pages: []string{""}}, nil
	}

	header := records[0]
	var b strings.Builder
	for _, rec := range records[1:] {
		cells := make([]string, 0, len(rec))
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				cells = append(cells, strings.TrimSpace(header[i])+": "+cell)
			} else {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			b.WriteString(strings.Join(cells, "; "))
			b.WriteString("\n")
		}
	}
	return &Document{Pages: []string{strings.TrimSpace(b.String())}}, nil
}

// JSONExtractor flattens a JSON document into "path: value" lines
type JSONExtractor struct{}

// NewJSONExtractor creates a JSON extractor
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

// MediaType returns json
func (e *JSONExtractor) MediaType() model.MediaType {
	return model.MediaJSON
}

// Extract walks objects in key order and arrays in index order
func (e *JSONExtractor) Extract(_ context.Context, data []byte, name string) (*Document, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json %s: %w", name, err)
	}

	var lines []string
	flattenJSON("", v, &lines)
	return &Document{Pages: []string{strings.Join(lines, "\n")}}, nil
}

func flattenJSON(prefix string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenJSON(joinPath(prefix, k), val[k], lines)
		}
	case []any:
		for i, item := range val {
			flattenJSON(prefix+"["+strconv.Itoa(i)+"]", item, lines)
		}
	case nil:
	case string:
		if strings.TrimSpace(val) != "" {
			*lines = append(*lines, labelled(prefix, val))
		}
	default:
		*lines = append(*lines, labelled(prefix, fmt.Sprint(val)))
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func labelled(path, value string) string {
	if path == "" {
		return value
	}
	return path + ": " + value
}
