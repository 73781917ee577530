package model

// Response is the envelope used for error and status replies of the HTTP API.
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewResponse(message string, data any) *Response {
	return &Response{
		Message: message,
		Data:    data,
	}
}
