package model

import "time"

// HistoryEntry is one persisted (query, result) record scoped to a session
type HistoryEntry struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Query     string           `json:"query"`
	Result    SummaryResult    `json:"result"`
	Retrieval *RetrievalResult `json:"retrieval,omitempty"` // Raw stage-one output when stored
	CreatedAt time.Time        `json:"created_at"`
}
