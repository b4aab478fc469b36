package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/lexbrief/internal/export"
	"github.com/ppiankov/lexbrief/internal/ingest"
	"github.com/ppiankov/lexbrief/internal/model"
	"github.com/ppiankov/lexbrief/internal/pipeline"
)

type sourceItem struct {
	Index int `json:"index"`
	model.SourceDescriptor
}

type sourcesResponse struct {
	SessionID string       `json:"session_id"`
	Sources   []sourceItem `json:"sources"`
}

type addSourceRequest struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type indexRequest struct {
	Fresh bool `json:"fresh"`
}

type indexFailure struct {
	Location string `json:"location"`
	Error    string `json:"error"`
}

type indexResponse struct {
	Indexed int            `json:"indexed"`
	Failed  []indexFailure `json:"failed"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type historyResponse struct {
	SessionID string               `json:"session_id"`
	Entries   []model.HistoryEntry `json:"entries"`
}

func listing(sessionID string, sources []model.SourceDescriptor) sourcesResponse {
	items := make([]sourceItem, len(sources))
	for i, src := range sources {
		items[i] = sourceItem{Index: i, SourceDescriptor: src}
	}
	return sourcesResponse{SessionID: sessionID, Sources: items}
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	set, err := s.sources.Load(sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing(sid, set.List()))
}

// addSource accepts JSON {"url"} or {"path"}, or a multipart upload in field "file"
func (s *Server) addSource(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	in, err := s.sourceInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	desc, err := s.ingester.AddSource(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	index := -1
	set, err := s.sources.Update(sid, func(set *ingest.SourceSet) error {
		index = set.Add(desc)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"index":   index,
		"source":  desc,
		"sources": listing(sid, set.List()).Sources,
	})
}

func (s *Server) sourceInput(w http.ResponseWriter, r *http.Request) (ingest.Input, error) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return ingest.Input{}, fmt.Errorf("%w: read upload: %v", model.ErrInvalidSource, err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return ingest.Input{}, fmt.Errorf("%w: missing form field \"file\"", model.ErrInvalidSource)
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			return ingest.Input{}, fmt.Errorf("%w: read upload: %v", model.ErrInvalidSource, err)
		}
		return ingest.Input{Upload: &ingest.Upload{Name: header.Filename, Data: data}}, nil
	}

	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ingest.Input{}, fmt.Errorf("%w: invalid request body", model.ErrInvalidSource)
	}
	// Server-side paths would expose the host filesystem to clients
	if strings.TrimSpace(req.Path) != "" {
		return ingest.Input{}, fmt.Errorf("%w: path sources are not accepted over HTTP, upload the file instead", model.ErrInvalidSource)
	}
	return ingest.Input{URL: req.URL}, nil
}

func (s *Server) removeSource(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "source index must be an integer")
		return
	}

	var removed model.SourceDescriptor
	set, err := s.sources.Update(sid, func(set *ingest.SourceSet) error {
		var rerr error
		removed, rerr = set.Remove(index)
		return rerr
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"sources": listing(sid, set.List()).Sources,
	})
}

func (s *Server) buildIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, "invalid request body")
			return
		}
	}

	sc, err := s.sessionContext(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := s.engine.BuildIndex(r.Context(), sc, req.Fresh)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := indexResponse{Indexed: report.Indexed, Failed: []indexFailure{}}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, indexFailure{Location: f.Location, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// query runs the pipeline. A summarization failure still answers 200 with
// the retrieval result and a summary_error field.
func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(w, "query is required")
		return
	}

	sc, err := s.sessionContext(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.engine.Run(r.Context(), sc, req.Query)
	if err != nil && outcome == nil {
		writeError(w, err)
		return
	}

	data, merr := pipeline.MarshalOutcome(outcome)
	if merr != nil {
		writeError(w, merr)
		return
	}

	status := http.StatusOK
	if err != nil {
		// History append failed after a complete answer
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.ListRecent(r.Context(), sid, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sid, Entries: entries})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context(), chi.URLParam(r, "sid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	format := export.FormatMarkdown
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		format = f
	}

	entry, err := s.history.Get(r.Context(), chi.URLParam(r, "sid"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, entry, format); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(entry, format)))
	_, _ = w.Write(buf.Bytes())
}
