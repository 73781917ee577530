package model

import (
	"encoding/json"
	"time"
)

// SavedQuery is a curated question/request pair offered to the model as a
// reference when a new question resembles it.
type SavedQuery struct {
	ID          string          `json:"id"`
	Index       string          `json:"index"`
	Description string          `json:"description"`
	Query       json.RawMessage `json:"query" swaggertype:"object"`
	Tags        []string        `json:"tags,omitempty"`
	Category    string          `json:"category,omitempty"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
