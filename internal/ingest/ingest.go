// Package ingest validates user-supplied documents and keeps each session's
// active source set.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// Upload is an in-memory document plus its original file name
type Upload struct {
	Name string
	Data []byte
}

// Input is one add-source request. Exactly one field must be set.
type Input struct {
	URL    string
	Path   string
	Upload *Upload
}

// Ingester turns raw inputs into source descriptors
type Ingester struct {
	uploadsDir string
	now        func() time.Time
}

// NewIngester creates an ingester persisting uploads under uploadsDir
func NewIngester(uploadsDir string) *Ingester {
	return &Ingester{uploadsDir: uploadsDir, now: time.Now}
}

// AddSource validates the input and returns its descriptor. Uploads are
// on disk before this returns.
func (i *Ingester) AddSource(ctx context.Context, in Input) (model.SourceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return model.SourceDescriptor{}, err
	}

	set := 0
	if strings.TrimSpace(in.URL) != "" {
		set++
	}
	if strings.TrimSpace(in.Path) != "" {
		set++
	}
	if in.Upload != nil {
		set++
	}
	if set != 1 {
		return model.SourceDescriptor{}, fmt.Errorf("%w: exactly one of url, path or upload is required", model.ErrInvalidSource)
	}

	var (
		desc model.SourceDescriptor
		err  error
	)
	switch {
	case in.Upload != nil:
		desc, err = i.fromUpload(*in.Upload)
	case strings.TrimSpace(in.URL) != "":
		desc, err = FromURL(in.URL)
	default:
		desc, err = FromPath(in.Path)
	}
	if err != nil {
		return model.SourceDescriptor{}, err
	}

	desc.AddedAt = i.now().UTC()
	logger.Debug("source accepted: %s", desc)
	return desc, nil
}

// FromURL builds a descriptor for a remote document
func FromURL(raw string) (model.SourceDescriptor, error) {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return model.SourceDescriptor{}, fmt.Errorf("%w: URL must start with http:// or https://: %q", model.ErrInvalidSource, raw)
	}

	desc := model.SourceDescriptor{
		Kind:        model.SourceRemoteURL,
		Location:    u,
		DisplayName: model.DisplayNameFromLocation(u),
		MediaType:   model.MediaTypeFromURL(u),
	}
	return desc, desc.Validate()
}

// FromPath builds a descriptor for a file already on disk
func FromPath(p string) (model.SourceDescriptor, error) {
	abs, err := filepath.Abs(strings.TrimSpace(p))
	if err != nil {
		return model.SourceDescriptor{}, fmt.Errorf("%w: %v", model.ErrInvalidSource, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return model.SourceDescriptor{}, fmt.Errorf("%w: %v", model.ErrInvalidSource, err)
	}
	if !info.Mode().IsRegular() {
		return model.SourceDescriptor{}, fmt.Errorf("%w: %s is not a regular file", model.ErrInvalidSource, abs)
	}

	mt, ok := model.MediaTypeFromPath(abs)
	if !ok {
		return model.SourceDescriptor{}, fmt.Errorf("%w: unsupported file type %q", model.ErrInvalidSource, filepath.Ext(abs))
	}

	desc := model.SourceDescriptor{
		Kind:        model.SourceLocalFile,
		Location:    abs,
		DisplayName: model.DisplayNameFromLocation(abs),
		MediaType:   mt,
	}
	return desc, desc.Validate()
}

// fromUpload writes the buffer as <uuid>_<basename> via temp file and rename
func (i *Ingester) fromUpload(up Upload) (model.SourceDescriptor, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(up.Name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return model.SourceDescriptor{}, fmt.Errorf("%w: upload has no file name", model.ErrInvalidSource)
	}
	if len(up.Data) == 0 {
		return model.SourceDescriptor{}, fmt.Errorf("%w: upload %q is empty", model.ErrInvalidSource, name)
	}

	mt, ok := model.MediaTypeFromPath(name)
	if !ok {
		return model.SourceDescriptor{}, fmt.Errorf("%w: unsupported file type %q", model.ErrInvalidSource, filepath.Ext(name))
	}

	if err := os.MkdirAll(i.uploadsDir, 0o755); err != nil {
		return model.SourceDescriptor{}, fmt.Errorf("create uploads directory: %w", err)
	}

	target := filepath.Join(i.uploadsDir, uuid.NewString()+"_"+name)
	if err := writeFileAtomic(target, up.Data); err != nil {
		return model.SourceDescriptor{}, fmt.Errorf("store upload: %w", err)
	}

	return model.SourceDescriptor{
		Kind:        model.SourceUploadedFile,
		Location:    target,
		DisplayName: model.DisplayNameFromLocation(name),
		MediaType:   mt,
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// DefaultDescriptors converts configured default URLs or paths into descriptors,
// skipping entries that do not validate.
func DefaultDescriptors(locations []string) []model.SourceDescriptor {
	var out []model.SourceDescriptor
	for _, loc := range locations {
		var (
			desc model.SourceDescriptor
			err  error
		)
		lower := strings.ToLower(loc)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			desc, err = FromURL(loc)
		} else {
			desc, err = FromPath(loc)
		}
		if err != nil {
			logger.Warn("skipping default source %s: %v", loc, err)
			continue
		}
		out = append(out, desc)
	}
	return out
}
