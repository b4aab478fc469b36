package model

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Wrap with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrInvalidSource is bad ingestion input the user can correct.
	ErrInvalidSource = errors.New("invalid source")

	// ErrIndexing means the knowledge index could not ingest a document.
	ErrIndexing = errors.New("indexing failed")

	// ErrMalformedRetrievalOutput means the LLM did not return the retrieval JSON shape.
	ErrMalformedRetrievalOutput = errors.New("malformed retrieval output")

	// ErrSummarization means the simplification stage failed.
	// The retrieval result is still valid.
	ErrSummarization = errors.New("summarization failed")

	// ErrConfiguration is fatal at startup, e.g. missing credentials.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidSession means a session id is not a safe path segment.
	ErrInvalidSession = errors.New("invalid session id")
)

// IndexingError reports one document the index failed to ingest
type IndexingError struct {
	Location string
	Err      error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Location, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrIndexing) match any IndexingError
func (e *IndexingError) Is(target error) bool {
	return target == ErrIndexing
}
