package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document review statuses.
const (
	DocumentStatusPending  = "pending"
	DocumentStatusReviewed = "reviewed"
	DocumentStatusApproved = "approved"
	DocumentStatusRejected = "rejected"
)

// Document represents an uploaded administrative document attached to a
// student. File content lives in external storage; only the reference is
// kept here.
type Document struct {
	ID        string            `gorm:"primaryKey;size:50" json:"id"`
	StudentID string            `gorm:"size:50;not null;index" json:"student_id"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	FileURL   string            `gorm:"size:512" json:"file_url"`
	MimeType  string            `gorm:"size:128" json:"mime_type"`
	SizeBytes int64             `gorm:"default:0" json:"size_bytes"`
	Status    string            `gorm:"size:32;not null;default:pending" json:"status"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
