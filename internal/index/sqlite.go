package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/lexbrief/internal/extract"
	"github.com/ppiankov/lexbrief/internal/model"
)

// DefaultTopK is the number of passages returned when the caller passes 0
const DefaultTopK = 8

// SQLiteIndex is a lexical KnowledgeIndex backed by SQLite FTS5
type SQLiteIndex struct {
	db        *sql.DB
	loader    *Loader
	extractor *extract.Registry
	chunker   *Chunker
}

// SQLiteOptions configures NewSQLiteIndex
type SQLiteOptions struct {
	Path         string
	Fetcher      Fetcher
	Extractor    *extract.Registry
	ChunkSize    int
	ChunkOverlap int
}

// NewSQLiteIndex opens or creates the index database at opts.Path
func NewSQLiteIndex(opts SQLiteOptions) (*SQLiteIndex, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: index path is empty", model.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	registry := opts.Extractor
	if registry == nil {
		registry = extract.NewRegistry("")
	}

	idx := &SQLiteIndex{
		db:        db,
		loader:    NewLoader(opts.Fetcher),
		extractor: registry,
		chunker:   NewChunker(opts.ChunkSize, opts.ChunkOverlap),
	}
	if err := idx.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return idx, nil
}

// Close releases the database
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			location TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			media_type TEXT NOT NULL,
			indexed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			location TEXT NOT NULL REFERENCES documents(location) ON DELETE CASCADE,
			document TEXT NOT NULL,
			locator TEXT NOT NULL,
			content TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_location ON chunks(location)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(content, content=chunks, content_rowid=rowid)`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Add loads, extracts and chunks a source, replacing any earlier chunks for
// the same location.
func (s *SQLiteIndex) Add(ctx context.Context, src model.SourceDescriptor) error {
	fail := func(err error) error {
		return &model.IndexingError{Location: src.Location, Err: err}
	}

	if err := src.Validate(); err != nil {
		return fail(err)
	}

	data, err := s.loader.Load(ctx, src)
	if err != nil {
		return fail(err)
	}

	doc, err := s.extractor.Extract(ctx, src.MediaType, data, src.DisplayName)
	if err != nil {
		return fail(err)
	}

	paged := src.MediaType == model.MediaPDF || len(doc.Pages) > 1
	chunks := s.chunker.Split(doc.Pages, paged)
	if len(chunks) == 0 {
		return fail(fmt.Errorf("no text to index"))
	}

	name := strings.TrimSpace(src.DisplayName)
	if name == "" {
		name = strings.TrimSpace(doc.Title)
	}
	if name == "" {
		name = model.DisplayNameFromLocation(src.Location)
	}

	if err := s.store(ctx, src, name, chunks); err != nil {
		return fail(err)
	}
	return nil
}

func (s *SQLiteIndex) store(ctx context.Context, src model.SourceDescriptor, name string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE location = ?`, src.Location); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (location, display_name, media_type, indexed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(location) DO UPDATE SET display_name = excluded.display_name,
		   media_type = excluded.media_type, indexed_at = excluded.indexed_at`,
		src.Location, name, string(src.MediaType), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (location, document, locator, content, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, src.Location, name, c.Locator, c.Content, c.Position); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Query returns the topK best bm25 matches among the documents at locations.
// Text with no searchable words, or no locations, yields no passages.
func (s *SQLiteIndex) Query(ctx context.Context, text string, topK int, locations []string) ([]Passage, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	match := MatchExpression(text)
	if match == "" || len(locations) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(locations)+2)
	args = append(args, match)
	for _, loc := range locations {
		args = append(args, loc)
	}
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.document, c.locator, c.content
		 FROM chunks_fts
		 JOIN chunks c ON c.rowid = chunks_fts.rowid
		 WHERE chunks_fts MATCH ? AND c.location IN (`+placeholders(len(locations))+`)
		 ORDER BY bm25(chunks_fts), c.position
		 LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.DocumentTitle, &p.Locator, &p.Text); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// IndexedDocument describes one document stored in the index
type IndexedDocument struct {
	Location    string
	DisplayName string
	MediaType   model.MediaType
	Chunks      int
	IndexedAt   time.Time
}

// Documents lists indexed documents in location order
func (s *SQLiteIndex) Documents(ctx context.Context) ([]IndexedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.location, d.display_name, d.media_type, d.indexed_at,
		   (SELECT count(*) FROM chunks c WHERE c.location = d.location)
		 FROM documents d ORDER BY d.location`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []IndexedDocument
	for rows.Next() {
		var (
			d         IndexedDocument
			mt, stamp string
		)
		if err := rows.Scan(&d.Location, &d.DisplayName, &mt, &stamp, &d.Chunks); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.MediaType = model.MediaType(mt)
		d.IndexedAt, _ = time.Parse(time.RFC3339Nano, stamp)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Missing returns the sources whose location is not among docs, in order
func Missing(docs []IndexedDocument, sources []model.SourceDescriptor) []model.SourceDescriptor {
	have := make(map[string]bool, len(docs))
	for _, d := range docs {
		have[d.Location] = true
	}
	var missing []model.SourceDescriptor
	for _, src := range sources {
		if !have[src.Location] {
			missing = append(missing, src)
		}
	}
	return missing
}

// Remove drops the documents at locations and their chunks. Unknown
// locations are ignored.
func (s *SQLiteIndex) Remove(ctx context.Context, locations []string) error {
	if len(locations) == 0 {
		return nil
	}
	args := make([]any, len(locations))
	for i, loc := range locations {
		args[i] = loc
	}
	in := placeholders(len(locations))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM chunks WHERE location IN (` + in + `)`,
		`DELETE FROM documents WHERE location IN (` + in + `)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("remove documents: %w", err)
		}
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Reset removes every document of every session
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM chunks`, `DELETE FROM documents`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	}
	return tx.Commit()
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "how": true, "i": true, "if": true, "in": true, "is": true,
	"it": true, "me": true, "my": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "with": true, "you": true,
}

// MatchExpression turns free text into an FTS5 MATCH expression of quoted,
// OR-joined words. It returns "" when nothing searchable remains.
func MatchExpression(text string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
