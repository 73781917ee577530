package model

import (
	"strconv"
	"time"
)

// TurnEvent is the audit record published for every appended turn.
type TurnEvent struct {
	SessionID   string     `json:"sessionId"`
	Seq         int        `json:"seq"`
	UserMessage string     `json:"userMessage"`
	Status      TurnStatus `json:"status"`
	ErrorKind   ErrorKind  `json:"errorKind,omitempty"`
	ErrorStage  string     `json:"errorStage,omitempty"`
	Index       string     `json:"index,omitempty"`
	ChartKind   ChartKind  `json:"chartKind,omitempty"`
	Rows        int        `json:"rows"`
	TotalHits   int64      `json:"totalHits"`
	TookMs      int64      `json:"tookMs"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinalizedAt time.Time  `json:"finalizedAt"`
}

func NewTurnEvent(t Turn) TurnEvent {
	ev := TurnEvent{
		SessionID:   t.SessionID,
		Seq:         t.Seq,
		UserMessage: t.UserMessage,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		FinalizedAt: t.FinalizedAt,
	}
	if t.Error != nil {
		ev.ErrorKind = t.Error.Kind
		ev.ErrorStage = t.Error.Stage
	}
	if t.Query != nil {
		ev.Index = t.Query.Index
	}
	if t.RawResult != nil {
		ev.TotalHits = t.RawResult.TotalHits
		ev.TookMs = t.RawResult.TookMs
	}
	if t.Table != nil {
		ev.Rows = t.Table.NumRows()
	}
	if t.Chart != nil {
		ev.ChartKind = t.Chart.Kind
	}
	return ev
}

// DocumentID identifies the event across redeliveries.
func (e TurnEvent) DocumentID() string {
	return e.SessionID + "-" + strconv.Itoa(e.Seq)
}
