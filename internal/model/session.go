package model

import "time"

type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnSucceeded TurnStatus = "succeeded"
	TurnFailed    TurnStatus = "failed"
)

// Session is the persisted metadata of one conversation. Turns are stored separately.
type Session struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	TurnCount      int       `json:"turnCount"`
}

// SessionSummary is what listSessions returns.
type SessionSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	TurnCount      int       `json:"turnCount"`
	LastMessage    string    `json:"lastMessage,omitempty"`
}

// TurnError is the error detail stored on a failed turn.
type TurnError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}

// RawResultRef points at the backend response a turn was built from.
type RawResultRef struct {
	Index     string `json:"index"`
	TotalHits int64  `json:"totalHits"`
	TookMs    int64  `json:"tookMs"`
}

// Turn is one user request and its outcome. Finalized turns are never edited.
type Turn struct {
	Seq         int             `json:"seq"`
	SessionID   string          `json:"sessionId"`
	UserMessage string          `json:"userMessage"`
	Query       *QueryRequest   `json:"query,omitempty"`
	RawResult   *RawResultRef   `json:"rawResult,omitempty"`
	Table       *CanonicalTable `json:"table,omitempty"`
	Chart       *ChartSpec      `json:"chart,omitempty"`
	Status      TurnStatus      `json:"status"`
	Error       *TurnError      `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinalizedAt time.Time       `json:"finalizedAt"`
}

// Finalized reports whether the turn reached a terminal status.
func (t Turn) Finalized() bool {
	return t.Status == TurnSucceeded || t.Status == TurnFailed
}
