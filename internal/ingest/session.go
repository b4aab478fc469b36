package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lexbrief/internal/model"
)

const sourcesFile = "sources.yaml"

// sessionFile is the on-disk form of a session's source set
type sessionFile struct {
	UpdatedAt time.Time                `yaml:"updated_at"`
	Sources   []model.SourceDescriptor `yaml:"sources"`
}

// SessionSources persists source sets under <dir>/<session>/sources.yaml
type SessionSources struct {
	mu       sync.Mutex
	dir      string
	defaults []model.SourceDescriptor
}

// NewSessionSources creates a store. Sessions without a file start from defaults.
func NewSessionSources(dir string, defaults []model.SourceDescriptor) *SessionSources {
	return &SessionSources{dir: dir, defaults: append([]model.SourceDescriptor(nil), defaults...)}
}

// Defaults returns the descriptors a new session starts with
func (s *SessionSources) Defaults() []model.SourceDescriptor {
	return append([]model.SourceDescriptor(nil), s.defaults...)
}

// Load returns the session's set
func (s *SessionSources) Load(sessionID string) (*SourceSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(sessionID)
}

// Update loads the session's set, applies fn and saves the result when fn succeeds
func (s *SessionSources) Update(sessionID string, fn func(*SourceSet) error) (*SourceSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(set); err != nil {
		return nil, err
	}
	if err := s.save(sessionID, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *SessionSources) path(sessionID string) (string, error) {
	if err := model.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, sessionID, sourcesFile), nil
}

func (s *SessionSources) load(sessionID string) (*SourceSet, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return NewSourceSet(s.defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session sources: %w", err)
	}

	var f sessionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	return NewSourceSet(f.Sources), nil
}

func (s *SessionSources) save(sessionID string, set *SourceSet) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := yaml.Marshal(sessionFile{UpdatedAt: time.Now().UTC(), Sources: set.List()})
	if err != nil {
		return fmt.Errorf("encode session sources: %w", err)
	}
	if err := writeFileAtomic(p, data); err != nil {
		return fmt.Errorf("write session sources: %w", err)
	}
	return nil
}
