// Package index defines the knowledge index the retrieval stage queries and
// ships a lexical SQLite FTS5 implementation of it.
package index

import (
	"context"
	"errors"

	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// KnowledgeIndex ingests documents and returns passages for a query.
// One index serves every session; each query names the document locations
// it may draw from.
type KnowledgeIndex interface {
	// Add ingests one source. Failures are reported as *model.IndexingError.
	Add(ctx context.Context, source model.SourceDescriptor) error

	// Query returns up to topK passages ranked by relevance, searching only
	// the documents at locations. An empty locations list matches nothing.
	Query(ctx context.Context, text string, topK int, locations []string) ([]Passage, error)
}

// Passage is one retrievable piece of a document
type Passage struct {
	DocumentTitle string `json:"document_title"` // Source display name
	Locator       string `json:"locator"`        // e.g. "page 3, part 2"
	Text          string `json:"text"`
}

// BuildReport summarizes an index build
type BuildReport struct {
	Indexed int
	Failed  []*model.IndexingError
}

// HasFailures reports whether any document failed
func (r BuildReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// Build adds every source exactly once, in order. A failing document is
// recorded and the remaining documents are still indexed.
func Build(ctx context.Context, idx KnowledgeIndex, sources []model.SourceDescriptor) BuildReport {
	var report BuildReport
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, &model.IndexingError{Location: src.Location, Err: err})
			continue
		}

		logger.Debug("indexing %s", src.Location)
		err := idx.Add(ctx, src)
		if err == nil {
			report.Indexed++
			continue
		}

		var ie *model.IndexingError
		if !errors.As(err, &ie) {
			ie = &model.IndexingError{Location: src.Location, Err: err}
		}
		logger.Warn("%v", ie)
		report.Failed = append(report.Failed, ie)
	}
	return report
}
