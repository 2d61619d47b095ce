package server

import (
	"github.com/taridex/declaration-processor/internal/model"
)

// CreateDeclarationRequest is the body for declaration creation.
type CreateDeclarationRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// UploadDocumentRequest is the body for document upload: an extracted
// JSON payload filed under a type key.
type UploadDocumentRequest struct {
	TypeKey string         `json:"type_key" binding:"required"`
	Payload map[string]any `json:"payload" binding:"required"`
}

// DocumentResponse describes one stored document without its payload.
type DocumentResponse struct {
	ID        string `json:"id"`
	TypeKey   string `json:"type_key"`
	CreatedAt string `json:"created_at"`
}

// FieldsResponse carries one recomputed field map together with the
// override keys currently in effect.
type FieldsResponse struct {
	Fields       model.FieldMap `json:"fields"`
	OverrideKeys []string       `json:"override_keys"`
}

// ApplyFieldsRequest is the body for the override write path.
type ApplyFieldsRequest struct {
	Changes map[string]any `json:"changes" binding:"required"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
