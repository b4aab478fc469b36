package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/lexbrief/internal/cache"
	"github.com/ppiankov/lexbrief/internal/extract"
	"github.com/ppiankov/lexbrief/internal/fetch"
	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/ingest"
	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
	"github.com/ppiankov/lexbrief/internal/pipeline"
)

// app holds the components every command shares
type app struct {
	cfg      *model.Config
	index    *index.SQLiteIndex
	provider llm.Provider
	pipeline *pipeline.Pipeline
	sources  *ingest.SessionSources
	ingester *ingest.Ingester
	history  *history.FileStore
}

// newApp wires the stack. The LLM provider is only built when withLLM is set,
// so source and index commands work without credentials.
func newApp(cfg *model.Config, withLLM bool) (*app, error) {
	fopts := fetch.OptionsFromConfig(cfg.HTTP)
	if cfg.Cache.Enabled {
		fopts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.CacheDir(), cfg.Cache.DiskTTL)
		fopts.CacheTTL = cfg.Cache.DiskTTL
	}
	fetcher := fetch.NewFetcher(fopts)

	idx, err := index.NewSQLiteIndex(index.SQLiteOptions{
		Path:         cfg.IndexPath(),
		Fetcher:      fetcher,
		Extractor:    extract.NewRegistry(cfg.Index.PDFTool),
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	if withLLM {
		provider, err = llm.NewFromModel(cfg.LLM, cfg.HTTP)
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		logger.Debug("llm provider: %s", provider.Name())
	}

	return &app{
		cfg:      cfg,
		index:    idx,
		provider: provider,
		pipeline: pipeline.New(idx, provider, pipeline.Options{TopK: cfg.Index.TopK}),
		sources:  ingest.NewSessionSources(cfg.SessionsDir(), ingest.DefaultDescriptors(cfg.Sources)),
		ingester: ingest.NewIngester(cfg.UploadsDir()),
		history:  history.NewFileStore(cfg.HistoryDir(), cfg.History.KeepRetrieval),
	}, nil
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		logger.Warn("close index: %v", err)
	}
}

// sessionContext loads the session's active sources
func (a *app) sessionContext(sessionID string) (*pipeline.SessionContext, error) {
	set, err := a.sources.Load(sessionID)
	if err != nil {
		return nil, err
	}
	return &pipeline.SessionContext{
		SessionID: sessionID,
		Sources:   set.List(),
		History:   a.history,
	}, nil
}

// ensureIndexed indexes the session's sources that are not in the index yet
func (a *app) ensureIndexed(ctx context.Context, sc *pipeline.SessionContext) error {
	docs, err := a.index.Documents(ctx)
	if err != nil {
		return err
	}
	missing := index.Missing(docs, sc.Sources)
	if len(missing) == 0 {
		return nil
	}

	fmt.Fprintf(os.Stderr, "⚙️  Indexing %d new sources...\n", len(missing))
	pending := *sc
	pending.Sources = missing
	report, err := a.pipeline.BuildIndex(ctx, &pending, false)
	if err != nil {
		return err
	}
	printBuildReport(report)
	return nil
}

func printBuildReport(report index.BuildReport) {
	fmt.Fprintf(os.Stderr, "✓ Indexed %d documents\n", report.Indexed)
	for _, f := range report.Failed {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", f.Location, f.Err)
	}
}
