package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
)

// AuditSubject is the NATS subject recorded audit events are published to.
const AuditSubject = "arsip.audit.recorded"

// ValidationError carries the full list of constraint violations for a
// rejected tracking record.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "tracking record validation failed: " + strings.Join(e.Violations, "; ")
}

// TrackingInput captures the fields a call site may supply when recording an
// action. Optional fields are pointers: a nil field is absent, never an
// overwrite with the zero value.
type TrackingInput struct {
	UserID      string
	StudentID   *string
	DocumentID  *string
	ActionType  models.ActionType
	Description *string
	Metadata    map[string]interface{}
	IPAddress   *string
	UserAgent   *string
}

// TrackingService is the single authorized entry point for producing
// tracking records, and the read facade over the trail.
type TrackingService struct {
	repo      repository.TrackingRepository
	nats      *nats.Conn
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewTrackingService constructs the tracking service. The NATS connection is
// optional; without it recorded events are simply not fanned out.
func NewTrackingService(repo repository.TrackingRepository, natsConn *nats.Conn, logger zerolog.Logger) *TrackingService {
	return &TrackingService{
		repo:      repo,
		nats:      natsConn,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "tracking_service").Logger(),
	}
}

// Logger exposes the service logger so capture stages can report the write
// failures they isolate on the service's behalf.
func (s *TrackingService) Logger() zerolog.Logger {
	return s.logger
}

// Record validates and persists one tracking record. Validation failures are
// reported with every violated constraint before any persistence attempt.
func (s *TrackingService) Record(ctx context.Context, input TrackingInput) (dto.TrackingRecordResponse, error) {
	record := models.TrackingRecord{
		ID:         uuid.NewString(),
		UserID:     strings.TrimSpace(input.UserID),
		StudentID:  input.StudentID,
		DocumentID: input.DocumentID,
		ActionType: input.ActionType,
	}

	if input.Description != nil {
		record.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.IPAddress != nil {
		record.IPAddress = *input.IPAddress
	}
	if input.UserAgent != nil {
		record.UserAgent = *input.UserAgent
	}
	if err := record.SetMetadata(input.Metadata); err != nil {
		return dto.TrackingRecordResponse{}, &ValidationError{Violations: []string{err.Error()}}
	}

	if result := record.Validate(); !result.Valid {
		return dto.TrackingRecordResponse{}, &ValidationError{Violations: result.Errors}
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Error().Err(err).Str("action_type", string(record.ActionType)).Msg("failed to persist tracking record")
		return dto.TrackingRecordResponse{}, err
	}

	response := dto.NewTrackingRecordResponse(record)
	s.publish(response)
	return response, nil
}

// publish fans the recorded event out over NATS, best effort.
func (s *TrackingService) publish(record dto.TrackingRecordResponse) {
	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode audit event for publication")
		return
	}
	if err := s.nats.Publish(AuditSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", AuditSubject).Msg("failed to publish audit event")
	}
}

func describe(description string) *string {
	return &description
}

// Typed convenience loggers. Each fixes the action type and a default
// description; call sites supply the rest.

// LogDocumentUpload records a document upload by userID.
func (s *TrackingService) LogDocumentUpload(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentUpload, "Mengunggah dokumen", input)
}

// LogDocumentUpdate records a document update.
func (s *TrackingService) LogDocumentUpdate(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentUpdate, "Memperbarui dokumen", input)
}

// LogDocumentDelete records a document deletion.
func (s *TrackingService) LogDocumentDelete(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentDelete, "Menghapus dokumen", input)
}

// LogDocumentApprove records a document approval.
func (s *TrackingService) LogDocumentApprove(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentApprove, "Menyetujui dokumen", input)
}

// LogDocumentReject records a document rejection.
func (s *TrackingService) LogDocumentReject(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentReject, "Menolak dokumen", input)
}

// LogDocumentReview records a document review.
func (s *TrackingService) LogDocumentReview(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionDocumentReview, "Meninjau dokumen", input)
}

// LogStudentCreate records a student registration.
func (s *TrackingService) LogStudentCreate(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionStudentCreate, "Menambahkan siswa", input)
}

// LogStudentUpdate records a student update.
func (s *TrackingService) LogStudentUpdate(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionStudentUpdate, "Memperbarui siswa", input)
}

// LogStudentDelete records a student removal.
func (s *TrackingService) LogStudentDelete(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionStudentDelete, "Menghapus siswa", input)
}

// LogUserLogin records a successful login.
func (s *TrackingService) LogUserLogin(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionUserLogin, "Masuk ke aplikasi", input)
}

// LogUserLogout records a logout.
func (s *TrackingService) LogUserLogout(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionUserLogout, "Keluar dari aplikasi", input)
}

// LogPermissionChange records a permission change.
func (s *TrackingService) LogPermissionChange(ctx context.Context, userID string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	return s.logTyped(ctx, userID, models.ActionPermissionChange, "Mengubah izin pengguna", input)
}

func (s *TrackingService) logTyped(ctx context.Context, userID string, action models.ActionType, defaultDescription string, input TrackingInput) (dto.TrackingRecordResponse, error) {
	input.UserID = userID
	input.ActionType = action
	if input.Description == nil {
		input.Description = describe(defaultDescription)
	}
	return s.Record(ctx, input)
}

// Get fetches one record in API view.
func (s *TrackingService) Get(ctx context.Context, id string) (dto.TrackingRecordResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TrackingRecordResponse{}, err
	}
	return dto.NewTrackingRecordResponse(record), nil
}

// List runs a filtered, paginated query over the trail.
func (s *TrackingService) List(ctx context.Context, req dto.TrackingListRequest) (dto.TrackingListResponse, error) {
	page, limit := normalizePage(req.Page, req.Limit)

	records, total, err := s.repo.List(ctx, repository.TrackingFilter{
		UserID:     req.UserID,
		StudentID:  req.StudentID,
		DocumentID: req.DocumentID,
		ActionType: models.ActionType(req.ActionType),
		IPAddress:  req.IPAddress,
		From:       req.DateFrom,
		To:         req.DateTo,
		Page:       page,
		PageSize:   limit,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		return dto.TrackingListResponse{}, err
	}

	return dto.NewTrackingListResponse(records, page, limit, total), nil
}

// ListByStudent lists records for one student.
func (s *TrackingService) ListByStudent(ctx context.Context, studentID string, page, limit int) (dto.TrackingListResponse, error) {
	page, limit = normalizePage(page, limit)
	records, total, err := s.repo.ListByStudent(ctx, studentID, page, limit)
	if err != nil {
		return dto.TrackingListResponse{}, err
	}
	return dto.NewTrackingListResponse(records, page, limit, total), nil
}

// ListByDocument lists records for one document.
func (s *TrackingService) ListByDocument(ctx context.Context, documentID string, page, limit int) (dto.TrackingListResponse, error) {
	page, limit = normalizePage(page, limit)
	records, total, err := s.repo.ListByDocument(ctx, documentID, page, limit)
	if err != nil {
		return dto.TrackingListResponse{}, err
	}
	return dto.NewTrackingListResponse(records, page, limit, total), nil
}

// ListByUser lists records produced by one principal.
func (s *TrackingService) ListByUser(ctx context.Context, userID string, page, limit int) (dto.TrackingListResponse, error) {
	page, limit = normalizePage(page, limit)
	records, total, err := s.repo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return dto.TrackingListResponse{}, err
	}
	return dto.NewTrackingListResponse(records, page, limit, total), nil
}

// ListByActionType lists records of one action type.
func (s *TrackingService) ListByActionType(ctx context.Context, action models.ActionType, page, limit int) (dto.TrackingListResponse, error) {
	page, limit = normalizePage(page, limit)
	records, total, err := s.repo.ListByActionType(ctx, action, page, limit)
	if err != nil {
		return dto.TrackingListResponse{}, err
	}
	return dto.NewTrackingListResponse(records, page, limit, total), nil
}

// Recent returns up to limit records, newest first.
func (s *TrackingService) Recent(ctx context.Context, limit int) ([]dto.TrackingRecordResponse, error) {
	records, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TrackingRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewTrackingRecordResponse(record))
	}
	return responses, nil
}

// UserStats aggregates one user's activity over a trailing window.
func (s *TrackingService) UserStats(ctx context.Context, userID string, days int) (dto.ActivityStatsResponse, error) {
	days = normalizeWindow(days)
	stats, err := s.repo.UserStats(ctx, userID, days)
	if err != nil {
		return dto.ActivityStatsResponse{}, err
	}
	return dto.NewActivityStatsResponse(stats, days), nil
}

// SystemStats aggregates system-wide activity over a trailing window.
func (s *TrackingService) SystemStats(ctx context.Context, days int) (dto.ActivityStatsResponse, error) {
	days = normalizeWindow(days)
	stats, err := s.repo.SystemStats(ctx, days)
	if err != nil {
		return dto.ActivityStatsResponse{}, err
	}
	return dto.NewActivityStatsResponse(stats, days), nil
}

// Cleanup deletes records older than the retention window and returns the
// number removed. This is the only deletion path for tracking records.
func (s *TrackingService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	deleted, err := s.repo.CleanupOldRecords(ctx, retentionDays)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int("retention_days", retentionDays).Int64("deleted", deleted).Msg("retention cleanup completed")
	return deleted, nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	return page, limit
}

func normalizeWindow(days int) int {
	if days <= 0 {
		return 30
	}
	return days
}
