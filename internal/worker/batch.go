package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/pipeline"
)

// Runner answers one query within a session
type Runner interface {
	Run(ctx context.Context, sc *pipeline.SessionContext, query string) (*pipeline.Outcome, error)
}

// SessionFactory builds the context for a batch session id
type SessionFactory func(sessionID string) *pipeline.SessionContext

// QueryResult is the outcome of one batch query
type QueryResult struct {
	Index     int
	Query     string
	SessionID string
	Outcome   *pipeline.Outcome
	Error     error
}

// GetError returns the run error, or the summarization error of a partial result
func (r *QueryResult) GetError() error {
	if r.Error != nil {
		return r.Error
	}
	if r.Outcome != nil && r.Outcome.SummaryErr != nil {
		return r.Outcome.SummaryErr
	}
	return nil
}

// BatchProcessor runs queries concurrently, each in its own session
type BatchProcessor struct {
	runner      Runner
	sessions    SessionFactory
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, sessions SessionFactory, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		sessions:    sessions,
		concurrency: concurrency,
	}
}

// NewBatchID returns a fresh batch identifier
func NewBatchID() string {
	return "batch-" + uuid.NewString()[:8]
}

// ProcessQueries runs every query in session <batchID>-<n> (n from 1) and
// returns results in input order.
func (b *BatchProcessor) ProcessQueries(ctx context.Context, batchID string, queries []string) []*QueryResult {
	if len(queries) == 0 {
		return []*QueryResult{}
	}
	if batchID == "" {
		batchID = NewBatchID()
	}

	pool := NewPool[*QueryResult](ctx, b.concurrency)
	pool.Start()

	// Submit from a separate goroutine so a full queue cannot block result draining
	go func() {
		defer pool.Close()
		for i, q := range queries {
			i, q := i, q
			sessionID := fmt.Sprintf("%s-%d", batchID, i+1)
			if !pool.Submit(func(ctx context.Context) *QueryResult {
				return b.run(ctx, i, sessionID, q)
			}) {
				return
			}
		}
	}()

	results := make([]*QueryResult, len(queries))
	for r := range pool.Results() {
		results[r.Index] = r
	}
	pool.Shutdown()

	for i, r := range results {
		if r == nil {
			results[i] = &QueryResult{Index: i, Query: queries[i], SessionID: fmt.Sprintf("%s-%d", batchID, i+1), Error: ctx.Err()}
		}
	}
	return results
}

func (b *BatchProcessor) run(ctx context.Context, index int, sessionID, query string) *QueryResult {
	res := &QueryResult{Index: index, Query: query, SessionID: sessionID}
	logger.Debug("batch: %s %q", sessionID, query)

	outcome, err := b.runner.Run(ctx, b.sessions(sessionID), query)
	res.Outcome = outcome
	res.Error = err
	return res
}

// ProcessFile reads queries from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, batchID, filePath string) ([]*QueryResult, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessQueries(ctx, batchID, queries), nil
}

// Counts returns the number of complete, partial and failed results
func Counts(results []*QueryResult) (complete, partial, failed int) {
	for _, r := range results {
		switch {
		case r.Error != nil:
			failed++
		case r.Outcome != nil && r.Outcome.Partial():
			partial++
		default:
			complete++
		}
	}
	return complete, partial, failed
}

// ReadQueriesFromFile reads queries from a file (one per line).
// Blank lines and # comments are skipped and duplicates dropped.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return queries, nil
}
