package dto

import (
	"encoding/json"

	"loginsight-backend/internal/model"
)

type SaveQueryRequest struct {
	Index       string          `json:"index" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Query       json.RawMessage `json:"query" binding:"required" swaggertype:"object"`
	Tags        []string        `json:"tags,omitempty"`
	Category    string          `json:"category,omitempty"`
}

func (r SaveQueryRequest) ToModel(id string) model.SavedQuery {
	return model.SavedQuery{
		ID:          id,
		Index:       r.Index,
		Description: r.Description,
		Query:       r.Query,
		Tags:        r.Tags,
		Category:    r.Category,
	}
}

type ListSavedQueriesResponse struct {
	Queries []model.SavedQuery `json:"queries"`
}
