package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lexbrief/internal/cache"
	"github.com/ppiankov/lexbrief/internal/extract"
	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/ingest"
	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/model"
)

const civilSuitQuery = "What is the procedure for filing a civil suit in India?"

const litigationGuide = `Chapter 3: Filing a Civil Suit

A civil suit is instituted by the presentation of a plaint to the court of the lowest grade competent to try it.
The plaint must state the facts constituting the cause of action and when it arose.
Court fees are payable under the Court Fees Act when the plaint is presented.
After the plaint is admitted, summons are issued to the defendant, who must file a written statement within thirty days.
`

const (
	institutionExtract = "A civil suit is instituted by the presentation of a plaint to the court of the lowest grade competent to try it."
	summonsExtract     = "summons are issued to the defendant, who must file a written statement within thirty days."
)

func newSQLiteIndex(t *testing.T) *index.SQLiteIndex {
	t.Helper()
	idx, err := index.NewSQLiteIndex(index.SQLiteOptions{
		Path:      filepath.Join(t.TempDir(), "index", "knowledge.db"),
		Extractor: extract.NewRegistry(""),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func ingestFixture(t *testing.T, name, content string) model.SourceDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	src, err := ingest.FromPath(path)
	require.NoError(t, err)
	return src
}

func TestRun_CivilSuitEndToEnd(t *testing.T) {
	guide := ingestFixture(t, "Guide_to_Litigation_in_India.txt", litigationGuide)
	require.Equal(t, "Guide to Litigation in India", guide.DisplayName)

	idx := newSQLiteIndex(t)
	provider := &scriptedProvider{responses: []string{
		retrievalJSON(t, model.RetrievalResult{Results: []model.Citation{
			{Document: guide.DisplayName, Citation: "Chapter 3", Extract: institutionExtract},
			{Document: guide.DisplayName, Citation: "Chapter 3", Extract: summonsExtract},
		}}),
		"# Query Summary\nTo start a civil suit you present a plaint to the right court. " +
			"The court then sends summons to the defendant, who has thirty days to answer in writing.",
	}}
	p := New(idx, provider, Options{})
	sc := &SessionContext{SessionID: "s1", Sources: []model.SourceDescriptor{guide}}

	report, err := p.BuildIndex(context.Background(), sc, true)
	require.NoError(t, err)
	require.False(t, report.HasFailures())

	out, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls())

	// The retrieval prompt carries text read back from the real index
	assert.Contains(t, provider.requests[0].Prompt, institutionExtract)
	assert.Empty(t, out.Warnings)

	names := map[string]bool{}
	for _, src := range sc.Sources {
		names[src.DisplayName] = true
	}
	require.NotEmpty(t, out.Retrieval.Results)
	var words []string
	for _, c := range out.Retrieval.Results {
		assert.True(t, names[c.Document], "document %q is not an ingested source", c.Document)
		assert.NotEmpty(t, strings.TrimSpace(c.Extract))
		for _, w := range strings.Fields(strings.ToLower(c.Extract)) {
			if len(w) >= 6 {
				words = append(words, strings.Trim(w, ".,"))
			}
		}
	}

	require.NotNil(t, out.Summary)
	body := strings.ToLower(out.Summary.Body)
	found := false
	for _, w := range words {
		if strings.Contains(body, w) {
			found = true
			break
		}
	}
	assert.True(t, found, "summary shares no keyword with the extracts")
	assert.True(t, strings.HasSuffix(out.Summary.Raw, model.DefaultClosingPrompt))
}

func TestRun_SessionsDoNotShareUploads(t *testing.T) {
	guide := ingestFixture(t, "guide.txt", litigationGuide)
	upload := ingestFixture(t, "commercial.txt", "A plaint in a commercial dispute must carry a statement of truth.")

	idx := newSQLiteIndex(t)
	provider := &scriptedProvider{responses: []string{
		retrievalJSON(t, model.RetrievalResult{Results: []model.Citation{
			{Document: guide.DisplayName, Extract: institutionExtract},
		}}),
		"You file a plaint.",
	}}
	p := New(idx, provider, Options{})
	sessionA := &SessionContext{SessionID: "a", Sources: []model.SourceDescriptor{guide}}
	sessionB := &SessionContext{SessionID: "b", Sources: []model.SourceDescriptor{guide, upload}}

	for _, sc := range []*SessionContext{sessionA, sessionB} {
		_, err := p.BuildIndex(context.Background(), sc, false)
		require.NoError(t, err)
	}

	_, err := p.Run(context.Background(), sessionA, "How is a plaint presented?")
	require.NoError(t, err)
	require.NotEmpty(t, provider.requests)
	assert.NotContains(t, provider.requests[0].Prompt, "commercial dispute")

	empty, err := p.Run(context.Background(), &SessionContext{SessionID: "c"}, "How is a plaint presented?")
	require.NoError(t, err)
	assert.True(t, empty.Retrieval.Empty())
	assert.Equal(t, 2, provider.calls(), "a session without sources must not reach the model")
}

func TestBuildIndex_FreshKeepsOtherSessions(t *testing.T) {
	guide := ingestFixture(t, "guide.txt", litigationGuide)
	upload := ingestFixture(t, "commercial.txt", "A plaint in a commercial dispute must carry a statement of truth.")

	idx := newSQLiteIndex(t)
	p := New(idx, &scriptedProvider{}, Options{})
	sessionA := &SessionContext{SessionID: "a", Sources: []model.SourceDescriptor{guide}}
	sessionB := &SessionContext{SessionID: "b", Sources: []model.SourceDescriptor{upload}}

	_, err := p.BuildIndex(context.Background(), sessionB, false)
	require.NoError(t, err)
	_, err = p.BuildIndex(context.Background(), sessionA, true)
	require.NoError(t, err)

	docs, err := idx.Documents(context.Background())
	require.NoError(t, err)
	var locations []string
	for _, d := range docs {
		locations = append(locations, d.Location)
	}
	assert.ElementsMatch(t, []string{guide.Location, upload.Location}, locations)
}

func TestRun_MalformedRetrievalIsNotCached(t *testing.T) {
	inner := &scriptedProvider{responses: []string{
		"Sorry, I cannot answer that in JSON.",
		retrievalJSON(t, civilSuitRetrieval()),
		"You start a civil suit by filing a plaint.",
	}}
	provider := llm.NewCachedProvider(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	p := New(&staticIndex{passages: litigationPassages}, provider, Options{})
	sc := &SessionContext{SessionID: "s1"}

	_, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.ErrorIs(t, err, model.ErrMalformedRetrievalOutput)

	out, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.NoError(t, err, "a retry must reach the model again")
	require.Len(t, out.Retrieval.Results, 2)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 3, inner.calls())

	again, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.NoError(t, err)
	assert.Equal(t, out.Summary.Body, again.Summary.Body)
	assert.Equal(t, 3, inner.calls(), "valid responses are served from the cache")
}

func TestRun_EmptySummaryIsNotCached(t *testing.T) {
	inner := &scriptedProvider{responses: []string{
		retrievalJSON(t, civilSuitRetrieval()),
		model.DefaultClosingPrompt,
		"You start a civil suit by filing a plaint.",
	}}
	provider := llm.NewCachedProvider(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	p := New(&staticIndex{passages: litigationPassages}, provider, Options{})
	sc := &SessionContext{SessionID: "s1"}

	first, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.NoError(t, err)
	assert.ErrorIs(t, first.SummaryErr, model.ErrSummarization)

	second, err := p.Run(context.Background(), sc, civilSuitQuery)
	require.NoError(t, err)
	require.NotNil(t, second.Summary)
	assert.Equal(t, 3, inner.calls(), "retrieval is cached, the empty summary is retried")
}
