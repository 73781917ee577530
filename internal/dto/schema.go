package dto

// UpdateDescriptionRequest edits the description of an index, or of one of its
// fields when Field is set. An empty description clears it.
type UpdateDescriptionRequest struct {
	Index       string `json:"index" binding:"required"`
	Field       string `json:"field,omitempty"`
	Description string `json:"description"`
}
