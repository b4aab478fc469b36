package ingest

import (
	"fmt"
	"sync"

	"github.com/ppiankov/lexbrief/internal/model"
)

// SourceSet is the ordered active document set of one session
type SourceSet struct {
	mu      sync.RWMutex
	sources []model.SourceDescriptor
}

// NewSourceSet creates a set holding a copy of sources
func NewSourceSet(sources []model.SourceDescriptor) *SourceSet {
	return &SourceSet{sources: append([]model.SourceDescriptor(nil), sources...)}
}

// Add appends a descriptor and returns its index
func (s *SourceSet) Add(desc model.SourceDescriptor) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, desc)
	return len(s.sources) - 1
}

// Remove deletes the descriptor at index. Content already in the knowledge
// index stays there until the index is rebuilt.
func (s *SourceSet) Remove(index int) (model.SourceDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.sources) {
		return model.SourceDescriptor{}, fmt.Errorf("%w: no source at index %d (have %d)", model.ErrInvalidSource, index, len(s.sources))
	}
	removed := s.sources[index]
	s.sources = append(s.sources[:index:index], s.sources[index+1:]...)
	return removed, nil
}

// List returns a copy of the active descriptors in insertion order
func (s *SourceSet) List() []model.SourceDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SourceDescriptor(nil), s.sources...)
}

// Len returns the number of active descriptors
func (s *SourceSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// Reset replaces the set with defaults
func (s *SourceSet) Reset(defaults []model.SourceDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append([]model.SourceDescriptor(nil), defaults...)
}
