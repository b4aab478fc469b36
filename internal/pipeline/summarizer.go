package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/lexbrief/internal/llm"
	"github.com/ppiankov/lexbrief/internal/logger"
	"github.com/ppiankov/lexbrief/internal/model"
)

// NoInformationBody is the summary when retrieval found nothing
const NoInformationBody = "No relevant information was found in the loaded documents for this question. " +
	"Try rephrasing it or adding a document that covers the topic."

// Summarizer runs the simplification stage. It only rephrases the retrieval
// result it is given and never queries the index.
type Summarizer struct {
	provider llm.Provider
	closing  string
}

// NewSummarizer creates a summarizer closing every answer with model.DefaultClosingPrompt
func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{provider: provider, closing: model.DefaultClosingPrompt}
}

// Summarize rewrites retrieval in plain language. The result always ends
// with the closing prompt.
func (s *Summarizer) Summarize(ctx context.Context, retrieval model.RetrievalResult) (*model.SummaryResult, error) {
	if retrieval.Empty() {
		result := model.NewSummaryResult(NoInformationBody, s.closing)
		return &result, nil
	}

	payload, err := json.MarshalIndent(retrieval, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode retrieval: %v", model.ErrSummarization, err)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System: summarySystemPrompt,
		Prompt: buildSummaryPrompt(string(payload)),
		Accept: func(content string) error {
			if stripClosingQuestion(content, s.closing) == "" {
				return errEmptySummary
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSummarization, err)
	}

	body := stripClosingQuestion(resp.Content, s.closing)
	if body == "" {
		return nil, fmt.Errorf("%w: %v", model.ErrSummarization, errEmptySummary)
	}

	logger.Debug("summary: %d characters from %d results", len(body), len(retrieval.Results))
	result := model.NewSummaryResult(body, s.closing)
	return &result, nil
}

var errEmptySummary = errors.New("empty response")

// stripClosingQuestion drops a trailing follow-up question the model wrote
// itself so the fixed closing prompt is never duplicated.
func stripClosingQuestion(content, closing string) string {
	body := strings.TrimSpace(content)
	body = strings.TrimSpace(strings.TrimSuffix(body, closing))

	lines := strings.Split(body, "\n")
	last := strings.Trim(lines[len(lines)-1], " \t*_>")
	if len(lines) > 1 && strings.HasSuffix(last, "?") && isInvitation(last) {
		body = strings.TrimSpace(strings.Join(lines[:len(lines)-1], "\n"))
	}
	return body
}

var invitationPrefixes = []string{
	"would you like", "do you want", "do you need", "shall i", "should i",
	"can i help", "is there anything", "let me know", "need more",
}

func isInvitation(line string) bool {
	l := strings.ToLower(line)
	for _, p := range invitationPrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}
