// Package pipeline runs a question through retrieval, simplification and
// history persistence for one session.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// SessionContext carries everything one session contributes to a run
type SessionContext struct {
	SessionID string
	Sources   []model.SourceDescriptor

	// History receives the entry for each completed run; nil skips persistence
	History history.Store
}

// Locations returns the locations of the session's sources. It is never nil,
// so a session without sources searches nothing.
func (sc *SessionContext) Locations() []string {
	locations := make([]string, 0, len(sc.Sources))
	for _, src := range sc.Sources {
		locations = append(locations, src.Location)
	}
	return locations
}

// Options configures a Pipeline
type Options struct {
	TopK int
}

// Pipeline orchestrates the two stages. It holds no per-session state and
// is safe for concurrent use by independent sessions.
type Pipeline struct {
	index      index.KnowledgeIndex
	retriever  *Retriever
	summarizer *Summarizer
}

// New creates a pipeline over a shared index and provider
func New(idx index.KnowledgeIndex, provider llm.Provider, opts Options) *Pipeline {
	return &Pipeline{
		index:      idx,
		retriever:  NewRetriever(idx, provider, opts.TopK),
		summarizer: NewSummarizer(provider),
	}
}

// Outcome is the result of one run. When summarization fails, Summary is nil,
// SummaryErr is set and Retrieval is still valid.
type Outcome struct {
	Query      string
	Retrieval  *model.RetrievalResult
	Summary    *model.SummaryResult
	SummaryErr error
	Entry      *model.HistoryEntry
	Warnings   []string
	Duration   time.Duration
}

// Partial reports whether only the retrieval stage succeeded
func (o *Outcome) Partial() bool {
	return o.SummaryErr != nil
}

// Run executes retrieve, summarize and history append in sequence.
// A retrieval failure is returned as an error. A summarization failure is
// reported on the Outcome and no history entry is written.
func (p *Pipeline) Run(ctx context.Context, sc *SessionContext, query string) (*Outcome, error) {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if sc == nil {
		return nil, fmt.Errorf("session context is required")
	}

	logger.Section("Retrieval")
	ret, err := p.retriever.RetrieveDetailed(ctx, query, sc.Locations())
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	logger.Info("retrieved %d results from %d documents", len(ret.Result.Results), len(ret.Result.Documents()))

	outcome := &Outcome{
		Query:     query,
		Retrieval: ret.Result,
		Warnings:  ret.Warnings,
	}

	logger.Section("Simplification")
	summary, err := p.summarizer.Summarize(ctx, *ret.Result)
	if err != nil {
		logger.Warn("summarization failed: %v", err)
		outcome.SummaryErr = err
		outcome.Duration = time.Since(start)
		return outcome, nil
	}
	outcome.Summary = summary

	if sc.History != nil {
		entry, err := sc.History.Append(ctx, sc.SessionID, query, *summary, ret.Result)
		if err != nil {
			outcome.Duration = time.Since(start)
			return outcome, fmt.Errorf("save history: %w", err)
		}
		outcome.Entry = entry
	}

	outcome.Duration = time.Since(start)
	logger.Debug("run finished in %s", outcome.Duration.Round(time.Millisecond))
	return outcome, nil
}

// remover is implemented by indexes that can drop individual documents
type remover interface {
	Remove(ctx context.Context, locations []string) error
}

// BuildIndex adds the session's sources to the index in order. With fresh
// set, the session's documents are dropped first when the index supports
// that; documents of other sessions are left alone.
func (p *Pipeline) BuildIndex(ctx context.Context, sc *SessionContext, fresh bool) (index.BuildReport, error) {
	if sc == nil {
		return index.BuildReport{}, fmt.Errorf("session context is required")
	}
	if fresh {
		if r, ok := p.index.(remover); ok {
			if err := r.Remove(ctx, sc.Locations()); err != nil {
				return index.BuildReport{}, fmt.Errorf("remove session documents: %w", err)
			}
		}
	}
	logger.Section("Indexing")
	return index.Build(ctx, p.index, sc.Sources), nil
}
