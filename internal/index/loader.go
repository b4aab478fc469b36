package index

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/lexbrief/internal/fetch"
	"github.com/ppiankov/lexbrief/internal/model"
)

// Fetcher retrieves remote sources
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Loader reads the raw bytes of a source descriptor
type Loader struct {
	fetcher Fetcher
}

// NewLoader creates a loader. fetcher may be nil when no remote sources are used.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load returns the content of the source
func (l *Loader) Load(ctx context.Context, src model.SourceDescriptor) ([]byte, error) {
	switch src.Kind {
	case model.SourceLocalFile, model.SourceUploadedFile:
		data, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return data, nil
	case model.SourceRemoteURL:
		if l.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", src.Location)
		}
		res, err := l.fetcher.Fetch(ctx, src.Location)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		return res.Body, nil
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
}
