package dto

import "loginsight-backend/internal/model"

type SendMessageRequest struct {
	Message   string `json:"message" binding:"required"`
	ChartKind string `json:"chartKind,omitempty"` // bar | line | pie | scatter | area | heatmap; empty lets the server choose
}

// TurnErrorResponse is returned when a turn ran but could not be recorded.
type TurnErrorResponse struct {
	Message string      `json:"message"`
	Turn    *model.Turn `json:"turn"`
}
