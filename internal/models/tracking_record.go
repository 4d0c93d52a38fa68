package models

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

// ActionType identifies the kind of audited action.
type ActionType string

// Closed enumeration of auditable actions.
const (
	ActionDocumentUpload   ActionType = "DOCUMENT_UPLOAD"
	ActionDocumentUpdate   ActionType = "DOCUMENT_UPDATE"
	ActionDocumentDelete   ActionType = "DOCUMENT_DELETE"
	ActionDocumentApprove  ActionType = "DOCUMENT_APPROVE"
	ActionDocumentReject   ActionType = "DOCUMENT_REJECT"
	ActionDocumentReview   ActionType = "DOCUMENT_REVIEW"
	ActionStudentCreate    ActionType = "STUDENT_CREATE"
	ActionStudentUpdate    ActionType = "STUDENT_UPDATE"
	ActionStudentDelete    ActionType = "STUDENT_DELETE"
	ActionUserLogin        ActionType = "USER_LOGIN"
	ActionUserLogout       ActionType = "USER_LOGOUT"
	ActionPermissionChange ActionType = "PERMISSION_CHANGE"
)

var documentActions = map[ActionType]struct{}{
	ActionDocumentUpload:  {},
	ActionDocumentUpdate:  {},
	ActionDocumentDelete:  {},
	ActionDocumentApprove: {},
	ActionDocumentReject:  {},
	ActionDocumentReview:  {},
}

var studentActions = map[ActionType]struct{}{
	ActionStudentCreate: {},
	ActionStudentUpdate: {},
	ActionStudentDelete: {},
}

var userActions = map[ActionType]struct{}{
	ActionUserLogin:        {},
	ActionUserLogout:       {},
	ActionPermissionChange: {},
}

var actionDisplayNames = map[ActionType]string{
	ActionDocumentUpload:   "Unggah Dokumen",
	ActionDocumentUpdate:   "Perbarui Dokumen",
	ActionDocumentDelete:   "Hapus Dokumen",
	ActionDocumentApprove:  "Setujui Dokumen",
	ActionDocumentReject:   "Tolak Dokumen",
	ActionDocumentReview:   "Tinjau Dokumen",
	ActionStudentCreate:    "Tambah Siswa",
	ActionStudentUpdate:    "Perbarui Siswa",
	ActionStudentDelete:    "Hapus Siswa",
	ActionUserLogin:        "Masuk",
	ActionUserLogout:       "Keluar",
	ActionPermissionChange: "Ubah Izin",
}

// ActionDisplayNameFallback is returned for values outside the enumeration.
const ActionDisplayNameFallback = "Unknown Action"

// IsValidActionType reports whether the value belongs to the enumeration.
func IsValidActionType(action ActionType) bool {
	_, doc := documentActions[action]
	_, student := studentActions[action]
	_, user := userActions[action]
	return doc || student || user
}

// ActionDisplayName maps an action type to its human-readable label.
func ActionDisplayName(action ActionType) string {
	if name, ok := actionDisplayNames[action]; ok {
		return name
	}
	return ActionDisplayNameFallback
}

// TrackingRecord is one immutable audit trail entry. Records are created by
// the tracking service, never updated, and removed only through retention
// cleanup.
type TrackingRecord struct {
	ID          string     `gorm:"primaryKey;size:50" json:"id"`
	UserID      string     `gorm:"size:50;not null;index" json:"user_id"`
	StudentID   *string    `gorm:"size:50;index" json:"student_id,omitempty"`
	DocumentID  *string    `gorm:"size:50;index" json:"document_id,omitempty"`
	ActionType  ActionType `gorm:"size:64;not null;index" json:"action_type"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Metadata    *string    `gorm:"type:text" json:"metadata,omitempty"`
	IPAddress   string     `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent   string     `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

// IsDocumentAction reports whether the record concerns a document.
func (r TrackingRecord) IsDocumentAction() bool {
	_, ok := documentActions[r.ActionType]
	return ok
}

// IsStudentAction reports whether the record concerns a student.
func (r TrackingRecord) IsStudentAction() bool {
	_, ok := studentActions[r.ActionType]
	return ok
}

// IsUserAction reports whether the record concerns the principal only.
func (r TrackingRecord) IsUserAction() bool {
	_, ok := userActions[r.ActionType]
	return ok
}

// ValidationResult reports the outcome of TrackingRecord.Validate.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks the record against its persistence contract. Malformed
// input is reported in the result, never raised.
func (r TrackingRecord) Validate() ValidationResult {
	var errs []string

	if len(r.ID) > 50 {
		errs = append(errs, "id must be at most 50 characters")
	}

	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, "user_id is required")
	} else if len(r.UserID) > 50 {
		errs = append(errs, "user_id must be at most 50 characters")
	}

	if !IsValidActionType(r.ActionType) {
		errs = append(errs, fmt.Sprintf("action_type %q is not a recognized action", r.ActionType))
	}

	if r.IPAddress != "" && net.ParseIP(r.IPAddress) == nil {
		errs = append(errs, fmt.Sprintf("ip_address %q is not a valid IP address", r.IPAddress))
	}

	if r.Metadata != nil {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(*r.Metadata), &parsed); err != nil {
			errs = append(errs, "metadata must be a JSON object")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// SetMetadata stores the mapping as its serialized JSON form. A nil or empty
// mapping leaves the field absent rather than writing "null".
func (r *TrackingRecord) SetMetadata(metadata map[string]interface{}) error {
	if len(metadata) == 0 {
		r.Metadata = nil
		return nil
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	serialized := string(raw)
	r.Metadata = &serialized
	return nil
}

// MetadataMap deserializes the stored metadata. Corrupt stored values are
// treated as absent.
func (r TrackingRecord) MetadataMap() map[string]interface{} {
	if r.Metadata == nil {
		return nil
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(*r.Metadata), &parsed); err != nil {
		return nil
	}
	return parsed
}
