package dto

import "loginsight-backend/internal/model"

type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []model.SessionSummary `json:"sessions"`
}

type SessionDetailResponse struct {
	Session model.Session `json:"session"`
	Turns   []model.Turn  `json:"turns"`
}

type TurnsResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []model.Turn `json:"turns"`
}
