package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/lexbrief/internal/index"
	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// Retriever runs the extraction stage: one index query and one LLM call per question
type Retriever struct {
	index    index.KnowledgeIndex
	provider llm.Provider
	topK     int
}

// NewRetriever creates a retriever. topK <= 0 uses index.DefaultTopK.
func NewRetriever(idx index.KnowledgeIndex, provider llm.Provider, topK int) *Retriever {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	return &Retriever{index: idx, provider: provider, topK: topK}
}

// Retrieval is a retrieval result with the passages it was drawn from
type Retrieval struct {
	Result   *model.RetrievalResult
	Passages []index.Passage

	// Warnings name extracts that are not verbatim or cite an unknown document
	Warnings []string
}

// Retrieve returns the verbatim passages relevant to query, drawn only from
// the documents at locations
func (r *Retriever) Retrieve(ctx context.Context, query string, locations []string) (*model.RetrievalResult, error) {
	ret, err := r.RetrieveDetailed(ctx, query, locations)
	if err != nil {
		return nil, err
	}
	return ret.Result, nil
}

// RetrieveDetailed is Retrieve plus the source passages and warnings about
// extracts that are not verbatim or cite an unknown document
func (r *Retriever) RetrieveDetailed(ctx context.Context, query string, locations []string) (*Retrieval, error) {
	passages, err := r.index.Query(ctx, query, r.topK, locations)
	if err != nil {
		return nil, fmt.Errorf("query knowledge index: %w", err)
	}
	logger.Debug("retrieval: %d passages for %q", len(passages), query)

	if len(passages) == 0 {
		return &Retrieval{Result: &model.RetrievalResult{Query: query, Results: []model.Citation{}}}, nil
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System: retrievalSystemPrompt,
		Prompt: buildRetrievalPrompt(query, passages),
		Accept: func(content string) error {
			_, err := ParseRetrieval(content)
			return err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval LLM call: %w", err)
	}

	result, err := ParseRetrieval(resp.Content)
	if err != nil {
		return nil, err
	}
	result.Query = query

	ret := &Retrieval{Result: result, Passages: passages}
	for i, c := range result.Results {
		if !citesPassage(c.Document, passages) {
			ret.warn(fmt.Sprintf("result %d cites %q, which matches no retrieved document", i+1, c.Document))
		}
		if !appearsIn(c.Extract, passages) {
			ret.warn(fmt.Sprintf("result %d from %q is not a verbatim passage extract", i+1, c.Document))
		}
	}
	return ret, nil
}

func (r *Retrieval) warn(w string) {
	logger.Warn("retrieval: %s", w)
	r.Warnings = append(r.Warnings, w)
}

// citesPassage reports whether document names one of the passages' documents
func citesPassage(document string, passages []index.Passage) bool {
	document = strings.TrimSpace(document)
	for _, p := range passages {
		if strings.EqualFold(document, strings.TrimSpace(p.DocumentTitle)) {
			return true
		}
	}
	return false
}

type rawRetrieval struct {
	Query   string            `json:"query"`
	Results *[]model.Citation `json:"results"`
}

// ParseRetrieval decodes the retrieval JSON from model output. A surrounding
// code fence or prose is tolerated; the results array and each result's
// document and extract are required. Results keep their order and text.
func ParseRetrieval(content string) (*model.RetrievalResult, error) {
	payload := jsonObject(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", model.ErrMalformedRetrievalOutput)
	}

	var raw rawRetrieval
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedRetrievalOutput, err)
	}
	if raw.Results == nil {
		return nil, fmt.Errorf("%w: missing \"results\"", model.ErrMalformedRetrievalOutput)
	}

	for i, c := range *raw.Results {
		if strings.TrimSpace(c.Document) == "" {
			return nil, fmt.Errorf("%w: result %d has no document", model.ErrMalformedRetrievalOutput, i+1)
		}
		if strings.TrimSpace(c.Extract) == "" {
			return nil, fmt.Errorf("%w: result %d has no extract", model.ErrMalformedRetrievalOutput, i+1)
		}
	}

	return &model.RetrievalResult{Query: raw.Query, Results: *raw.Results}, nil
}

// jsonObject strips a markdown fence and any prose around the outermost object
func jsonObject(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// appearsIn compares with whitespace collapsed; layout extraction reflows lines
func appearsIn(extract string, passages []index.Passage) bool {
	needle := collapseSpace(extract)
	for _, p := range passages {
		if strings.Contains(collapseSpace(p.Text), needle) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
