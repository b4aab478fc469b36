package model

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// SourceKind tells how a document reached the active set
type SourceKind string

const (
	SourceLocalFile    SourceKind = "local_file"    // Path already on disk
	SourceRemoteURL    SourceKind = "remote_url"    // http(s) URL fetched at index time
	SourceUploadedFile SourceKind = "uploaded_file" // Buffer persisted into the uploads directory
)

// MediaType classifies the document format
type MediaType string

const (
	MediaPDF     MediaType = "pdf"
	MediaDOCX    MediaType = "docx"
	MediaTXT     MediaType = "txt"
	MediaCSV     MediaType = "csv"
	MediaJSON    MediaType = "json"
	MediaWebPage MediaType = "web_page"
)

// documentExtensions maps recognised file extensions to media types
var documentExtensions = map[string]MediaType{
	".pdf":      MediaPDF,
	".docx":     MediaDOCX,
	".txt":      MediaTXT,
	".md":       MediaTXT,
	".markdown": MediaTXT,
	".csv":      MediaCSV,
	".json":     MediaJSON,
	".html":     MediaWebPage,
	".htm":      MediaWebPage,
}

// SourceDescriptor is one normalized document in a session's active set.
// Descriptors are values: the set replaces them, it never edits them.
type SourceDescriptor struct {
	Kind        SourceKind `json:"kind" yaml:"kind"`
	Location    string     `json:"location" yaml:"location"`         // Path or URL
	DisplayName string     `json:"display_name" yaml:"display_name"` // Shown in citations
	MediaType   MediaType  `json:"media_type" yaml:"media_type"`
	AddedAt     time.Time  `json:"added_at,omitempty" yaml:"added_at,omitempty"`
}

// Validate checks the descriptor invariants
func (s SourceDescriptor) Validate() error {
	if strings.TrimSpace(s.Location) == "" {
		return fmt.Errorf("%w: empty location", ErrInvalidSource)
	}
	switch s.Kind {
	case SourceLocalFile, SourceRemoteURL, SourceUploadedFile:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, s.Kind)
	}
	if !s.MediaType.Valid() {
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidSource, s.MediaType)
	}
	return nil
}

// String returns a one-line description for listings
func (s SourceDescriptor) String() string {
	return fmt.Sprintf("%s [%s, %s] %s", s.DisplayName, s.Kind, s.MediaType, s.Location)
}

// Valid reports whether m is a known media type
func (m MediaType) Valid() bool {
	switch m {
	case MediaPDF, MediaDOCX, MediaTXT, MediaCSV, MediaJSON, MediaWebPage:
		return true
	}
	return false
}

// MediaTypeFromPath infers the media type from a file name or URL path.
// The second return is false when the extension is not recognised.
func MediaTypeFromPath(p string) (MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(p))
	mt, ok := documentExtensions[ext]
	return mt, ok
}

// MediaTypeFromURL infers the media type of a remote document.
// URLs without a document extension are treated as web pages.
func MediaTypeFromURL(rawURL string) MediaType {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return MediaWebPage
	}
	if mt, ok := MediaTypeFromPath(parsed.Path); ok {
		return mt
	}
	return MediaWebPage
}

// DisplayNameFromLocation derives a human-readable name from a path or URL
func DisplayNameFromLocation(location string) string {
	base := location
	if parsed, err := url.Parse(location); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		trimmed := strings.Trim(parsed.Path, "/")
		if trimmed == "" {
			return parsed.Host
		}
		base = path.Base(trimmed)
	} else {
		base = filepath.Base(location)
	}

	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}
