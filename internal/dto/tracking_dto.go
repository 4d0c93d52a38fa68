package dto

import (
	"math"
	"time"

	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// NewPaginationMeta derives pagination metadata from a count and page size.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}

	meta := PaginationMeta{
		CurrentPage:  page,
		TotalItems:   total,
		ItemsPerPage: pageSize,
	}
	if pageSize > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	} else {
		meta.TotalPages = 1
	}
	return meta
}

// TrackingCreateRequest is the payload for the manual create endpoint.
// Optional fields are pointers so an omitted field is distinguishable from
// an empty one.
type TrackingCreateRequest struct {
	UserID      string                 `json:"user_id" validate:"required,max=50"`
	StudentID   *string                `json:"student_id" validate:"omitempty,max=50"`
	DocumentID  *string                `json:"document_id" validate:"omitempty,max=50"`
	ActionType  string                 `json:"action_type" validate:"required"`
	Description *string                `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	IPAddress   *string                `json:"ip_address"`
	UserAgent   *string                `json:"user_agent"`
}

// TrackingListRequest carries filter and pagination query parameters.
type TrackingListRequest struct {
	UserID     string
	StudentID  string
	DocumentID string
	ActionType string
	IPAddress  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// TrackingRecordResponse is the API view of a tracking record: display name
// computed, timestamp in RFC 3339, metadata parsed back into a mapping.
type TrackingRecordResponse struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"user_id"`
	StudentID         *string                `json:"student_id,omitempty"`
	DocumentID        *string                `json:"document_id,omitempty"`
	ActionType        models.ActionType      `json:"action_type"`
	ActionDisplayName string                 `json:"action_display_name"`
	Description       string                 `json:"description,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	IPAddress         string                 `json:"ip_address,omitempty"`
	UserAgent         string                 `json:"user_agent,omitempty"`
	CreatedAt         string                 `json:"created_at"`
}

// NewTrackingRecordResponse converts a tracking record into its API view.
func NewTrackingRecordResponse(record models.TrackingRecord) TrackingRecordResponse {
	return TrackingRecordResponse{
		ID:                record.ID,
		UserID:            record.UserID,
		StudentID:         record.StudentID,
		DocumentID:        record.DocumentID,
		ActionType:        record.ActionType,
		ActionDisplayName: models.ActionDisplayName(record.ActionType),
		Description:       record.Description,
		Metadata:          record.MetadataMap(),
		IPAddress:         record.IPAddress,
		UserAgent:         record.UserAgent,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// TrackingListResponse wraps a page of tracking records.
type TrackingListResponse struct {
	Data       []TrackingRecordResponse `json:"data"`
	Pagination PaginationMeta           `json:"pagination"`
}

// NewTrackingListResponse assembles the list envelope.
func NewTrackingListResponse(records []models.TrackingRecord, page, pageSize int, total int64) TrackingListResponse {
	data := make([]TrackingRecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, NewTrackingRecordResponse(record))
	}
	return TrackingListResponse{
		Data:       data,
		Pagination: NewPaginationMeta(page, pageSize, total),
	}
}

// ActivityStatsResponse serializes aggregate statistics.
type ActivityStatsResponse struct {
	TotalActions  int64                        `json:"total_actions"`
	ActionsByType []repository.ActionTypeCount `json:"actions_by_type"`
	ActionsByUser []repository.UserCount       `json:"actions_by_user,omitempty"`
	DailyActivity []repository.DailyCount      `json:"daily_activity"`
	WindowDays    int                          `json:"window_days"`
	CacheHit      bool                         `json:"cache_hit,omitempty"`
}

// NewActivityStatsResponse converts repository aggregates into the API view.
func NewActivityStatsResponse(stats repository.ActivityStats, windowDays int) ActivityStatsResponse {
	return ActivityStatsResponse{
		TotalActions:  stats.TotalActions,
		ActionsByType: stats.ActionsByType,
		ActionsByUser: stats.ActionsByUser,
		DailyActivity: stats.DailyActivity,
		WindowDays:    windowDays,
	}
}
