// Package history persists query results per session as plain text files.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// DefaultLimit is the number of entries ListRecent returns by default
const DefaultLimit = 10

// ErrEntryNotFound means no entry with the requested id exists in the session
var ErrEntryNotFound = errors.New("history entry not found")

var entryIDPattern = regexp.MustCompile(`^\d{20}-[0-9a-f]{8}$`)

// Store is the history contract used by the pipeline
type Store interface {
	Append(ctx context.Context, sessionID, query string, result model.SummaryResult, retrieval *model.RetrievalResult) (*model.HistoryEntry, error)
	ListRecent(ctx context.Context, sessionID string, limit int) ([]model.HistoryEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

// FileStore keeps one directory per session with one file per entry:
// <20-digit stamp>-<uuid8>.md plus an optional .json retrieval sidecar.
type FileStore struct {
	dir           string
	keepRetrieval bool
	clock         *stampClock
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string, keepRetrieval bool) *FileStore {
	return &FileStore{dir: dir, keepRetrieval: keepRetrieval, clock: sharedClock}
}

// stampClock hands out strictly increasing nanosecond stamps
type stampClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

var sharedClock = &stampClock{now: time.Now}

func (c *stampClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

func (s *FileStore) sessionDir(sessionID string) (string, error) {
	if err := model.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, sessionID), nil
}

// Append writes a new entry. It never overwrites an existing file.
func (s *FileStore) Append(ctx context.Context, sessionID, query string, result model.SummaryResult, retrieval *model.RetrievalResult) (*model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	stamp := s.clock.next()
	id := fmt.Sprintf("%020d-%s", stamp, uuid.NewString()[:8])

	f, err := os.OpenFile(filepath.Join(dir, id+".md"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create history entry: %w", err)
	}
	if _, err := f.Write(Encode(query, result.Raw)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write history entry: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close history entry: %w", err)
	}

	entry := &model.HistoryEntry{
		ID:        id,
		SessionID: sessionID,
		Query:     query,
		Result:    result,
		CreatedAt: time.Unix(0, stamp).UTC(),
	}

	if s.keepRetrieval && retrieval != nil {
		if err := writeSidecar(filepath.Join(dir, id+".json"), retrieval); err != nil {
			// The entry itself is stored; the sidecar is optional detail
			logger.Warn("history: retrieval sidecar for %s not written: %v", id, err)
		} else {
			entry.Retrieval = retrieval
		}
	}

	logger.Debug("history: appended %s/%s", sessionID, id)
	return entry, nil
}

func writeSidecar(path string, retrieval *model.RetrievalResult) error {
	data, err := json.MarshalIndent(retrieval, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ListRecent returns up to limit entries, newest first by creation order.
// Entries that cannot be decoded are logged and skipped.
func (s *FileStore) ListRecent(ctx context.Context, sessionID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	ids, err := entryIDs(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]model.HistoryEntry, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(entries) == limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := s.read(dir, sessionID, id)
		switch {
		case err == nil:
			entries = append(entries, *entry)
		case errors.Is(err, os.ErrNotExist):
			// A concurrent Clear may remove files between listing and reading
		case errors.Is(err, ErrMalformedEntry):
			logger.Warn("history: skipping unreadable entry %s/%s: %v", sessionID, id, err)
		default:
			return nil, err
		}
	}
	return entries, nil
}

// entryIDs lists entry ids newest first. A missing directory has no entries.
func entryIDs(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var ids []string
	for _, f := range files {
		id, ok := strings.CutSuffix(f.Name(), ".md")
		if !ok || f.IsDir() || !entryIDPattern.MatchString(id) {
			continue
		}
		ids = append(ids, id)
	}
	// Fixed-width stamps sort lexically in creation order
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Get reads one entry
func (s *FileStore) Get(ctx context.Context, sessionID, id string) (*model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	if !entryIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, id)
	}

	entry, err := s.read(dir, sessionID, id)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrEntryNotFound, sessionID, id)
	}
	return entry, err
}

func (s *FileStore) read(dir, sessionID, id string) (*model.HistoryEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, id+".md"))
	if err != nil {
		return nil, err
	}
	query, body, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	entry := &model.HistoryEntry{
		ID:        id,
		SessionID: sessionID,
		Query:     query,
		Result:    SplitSummary(body),
	}
	if stamp, err := strconv.ParseInt(id[:20], 10, 64); err == nil {
		entry.CreatedAt = time.Unix(0, stamp).UTC()
	}

	if sidecar, err := os.ReadFile(filepath.Join(dir, id+".json")); err == nil {
		var r model.RetrievalResult
		if err := json.Unmarshal(sidecar, &r); err == nil {
			entry.Retrieval = &r
		} else {
			logger.Warn("history: ignoring unreadable sidecar for %s: %v", id, err)
		}
	}
	return entry, nil
}

// Clear removes every entry of the session. Other sessions are untouched and
// clearing an empty session is not an error.
func (s *FileStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	logger.Debug("history: cleared %s", sessionID)
	return nil
}
