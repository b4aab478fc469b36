package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lexbrief/internal/history"
	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/ingest"
	"github.com/ppiankov/lexbrief/internal/model"
	"github.com/ppiankov/lexbrief/internal/pipeline"
)

type fakeEngine struct {
	outcome  *pipeline.Outcome
	err      error
	report   index.BuildReport
	lastSC   *pipeline.SessionContext
	lastQ    string
	gotFresh bool
}

func (f *fakeEngine) Run(ctx context.Context, sc *pipeline.SessionContext, query string) (*pipeline.Outcome, error) {
	f.lastSC = sc
	f.lastQ = query
	return f.outcome, f.err
}

func (f *fakeEngine) BuildIndex(ctx context.Context, sc *pipeline.SessionContext, fresh bool) (index.BuildReport, error) {
	f.lastSC = sc
	f.gotFresh = fresh
	return f.report, nil
}

type fixture struct {
	engine  *fakeEngine
	history *history.FileStore
	uploads string
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	defaults := ingest.DefaultDescriptors([]string{"https://example.com/guide-to-litigation.pdf"})
	f := &fixture{
		engine:  &fakeEngine{},
		history: history.NewFileStore(filepath.Join(dir, "history"), false),
		uploads: filepath.Join(dir, "uploads"),
	}
	s := New(Options{
		Engine:   f.engine,
		Sources:  ingest.NewSessionSources(filepath.Join(dir, "sessions"), defaults),
		Ingester: ingest.NewIngester(f.uploads),
		History:  f.history,
		Config:   model.ServerConfig{MaxUploadBytes: 1 << 20},
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestInvalidSession(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/sessions/-bad/sources", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSources_DefaultsAndAdd(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/sessions/s1/sources", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list sourcesResponse
	decode(t, resp, &list)
	require.Len(t, list.Sources, 1)
	assert.Equal(t, model.MediaPDF, list.Sources[0].MediaType)

	resp = f.do(t, http.MethodPost, "/api/sessions/s1/sources", addSourceRequest{URL: "https://example.com/tenancy.docx"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added struct {
		Index  int                    `json:"index"`
		Source model.SourceDescriptor `json:"source"`
	}
	decode(t, resp, &added)
	assert.Equal(t, 1, added.Index)
	assert.Equal(t, model.MediaDOCX, added.Source.MediaType)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/sources", nil)
	decode(t, resp, &list)
	assert.Len(t, list.Sources, 2)

	// Other sessions keep the defaults
	resp = f.do(t, http.MethodGet, "/api/sessions/s2/sources", nil)
	decode(t, resp, &list)
	assert.Len(t, list.Sources, 1)
}

func TestSources_InvalidInput(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/sources", addSourceRequest{URL: "ftp://example.com/a.pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/sessions/s1/sources", addSourceRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/sessions/s1/sources", addSourceRequest{URL: "https://example.com/a.pdf", Path: "/tmp/a.pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSources_RejectsServerPaths(t *testing.T) {
	f := newFixture(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("server credentials"), 0o600))

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/sources", addSourceRequest{Path: secret})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Contains(t, body.Error, "upload the file")

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/sources", nil)
	var list sourcesResponse
	decode(t, resp, &list)
	require.Len(t, list.Sources, 1)
	assert.NotEqual(t, secret, list.Sources[0].Location)
}

func TestSources_Upload(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("The limitation period for a civil suit is three years."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/api/sessions/s1/sources", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var added struct {
		Source model.SourceDescriptor `json:"source"`
	}
	decode(t, resp, &added)
	assert.Equal(t, model.SourceUploadedFile, added.Source.Kind)
	assert.Equal(t, model.MediaTXT, added.Source.MediaType)

	data, err := os.ReadFile(added.Source.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "three years")
	assert.Equal(t, f.uploads, filepath.Dir(added.Source.Location))
}

func TestSources_Remove(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/sessions/s1/sources/x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/sessions/s1/sources/5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/sessions/s1/sources/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/sources", nil)
	var list sourcesResponse
	decode(t, resp, &list)
	assert.Empty(t, list.Sources)
}

func TestBuildIndex(t *testing.T) {
	f := newFixture(t)
	f.engine.report = index.BuildReport{
		Indexed: 1,
		Failed: []*model.IndexingError{
			{Location: "https://example.com/missing.pdf", Err: errors.New("404 Not Found")},
		},
	}

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/index", indexRequest{Fresh: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body indexResponse
	decode(t, resp, &body)
	assert.Equal(t, 1, body.Indexed)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "https://example.com/missing.pdf", body.Failed[0].Location)
	assert.True(t, f.engine.gotFresh)
	assert.Len(t, f.engine.lastSC.Sources, 1)

	resp = f.do(t, http.MethodPost, "/api/sessions/s1/index", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.engine.gotFresh)
}

func civilSuitOutcome() *pipeline.Outcome {
	summary := model.NewSummaryResult("You have three years to file.", model.DefaultClosingPrompt)
	return &pipeline.Outcome{
		Query: "How long do I have to file a civil suit?",
		Retrieval: &model.RetrievalResult{
			Query: "How long do I have to file a civil suit?",
			Results: []model.Citation{
				{Document: "Guide to Litigation in India", Extract: "The limitation period is three years."},
			},
		},
		Summary: &summary,
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t)
	f.engine.outcome = civilSuitOutcome()

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/queries", queryRequest{Query: "How long do I have to file a civil suit?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Contains(t, body, "summary")
	assert.NotContains(t, body, "summary_error")
	assert.Equal(t, "s1", f.engine.lastSC.SessionID)
	assert.Equal(t, f.history, f.engine.lastSC.History)
}

func TestQuery_Partial(t *testing.T) {
	f := newFixture(t)
	out := civilSuitOutcome()
	out.Summary = nil
	out.SummaryErr = fmt.Errorf("%w: provider timeout", model.ErrSummarization)
	f.engine.outcome = out

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/queries", queryRequest{Query: "q"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Contains(t, body, "retrieval")
	assert.Contains(t, body["summary_error"], "summarization failed")
}

func TestQuery_Errors(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/queries", queryRequest{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.engine.err = fmt.Errorf("%w: no JSON object", model.ErrMalformedRetrievalOutput)
	resp = f.do(t, http.MethodPost, "/api/sessions/s1/queries", queryRequest{Query: "q"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	f.engine.err = errors.New("index unavailable")
	resp = f.do(t, http.MethodPost, "/api/sessions/s1/queries", queryRequest{Query: "q"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.history.Append(ctx, "s1", "first question", model.NewSummaryResult("one", model.DefaultClosingPrompt), nil)
	require.NoError(t, err)
	_, err = f.history.Append(ctx, "s1", "second question", model.NewSummaryResult("two", model.DefaultClosingPrompt), nil)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/sessions/s1/history?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list historyResponse
	decode(t, resp, &list)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "second question", list.Entries[0].Query)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history/"+first.ID+"/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "query_"+first.ID+".md")
	data := new(bytes.Buffer)
	_, err = data.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data.String(), "# Query: first question\n\none"))

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history/"+first.ID+"/download?format=pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	data.Reset()
	_, err = data.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data.String(), "%PDF"))

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history/"+first.ID+"/download?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history/00000000000000000001-deadbeef/download", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/sessions/s1/history", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/history", nil)
	decode(t, resp, &list)
	assert.Empty(t, list.Entries)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", model.ErrInvalidSource)))
	assert.Equal(t, http.StatusBadRequest, statusFor(model.ErrInvalidSession))
	assert.Equal(t, http.StatusNotFound, statusFor(history.ErrEntryNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(model.ErrMalformedRetrievalOutput))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(model.ErrSummarization))
}
