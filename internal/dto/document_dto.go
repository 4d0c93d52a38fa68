package dto

import (
	"time"

	"github.com/noah-isme/arsip-go-api/internal/models"
)

// DocumentUpdateRequest captures partial document updates.
type DocumentUpdateRequest struct {
	Title    *string                `json:"title" validate:"omitempty,min=1,max=255"`
	Metadata map[string]interface{} `json:"metadata"`
}

// DocumentResponse serializes a document reference.
type DocumentResponse struct {
	ID        string                 `json:"id"`
	StudentID string                 `json:"student_id"`
	Title     string                 `json:"title"`
	FileURL   string                 `json:"file_url"`
	MimeType  string                 `json:"mime_type"`
	SizeBytes int64                  `json:"size_bytes"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// DocumentListResponse wraps a paginated document listing.
type DocumentListResponse struct {
	Data       []DocumentResponse `json:"data"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewDocumentResponse converts a document model into a DTO.
func NewDocumentResponse(document models.Document) DocumentResponse {
	return DocumentResponse{
		ID:        document.ID,
		StudentID: document.StudentID,
		Title:     document.Title,
		FileURL:   document.FileURL,
		MimeType:  document.MimeType,
		SizeBytes: document.SizeBytes,
		Status:    document.Status,
		Metadata:  document.Metadata,
		CreatedAt: document.CreatedAt,
		UpdatedAt: document.UpdatedAt,
	}
}
