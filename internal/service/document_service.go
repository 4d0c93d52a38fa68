package service

import (
	"bytes"
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/pkg/storage"
)

// DocumentUploadInput bundles the upload payload.
type DocumentUploadInput struct {
	StudentID string
	Title     string
	FileName  string
	Size      int64
	Content   io.Reader
}

// DocumentService manages document references; file content is delegated to
// the external storage collaborator.
type DocumentService struct {
	documents repository.DocumentRepository
	students  repository.StudentRepository
	uploader  storage.Uploader
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(documents repository.DocumentRepository, students repository.StudentRepository, uploader storage.Uploader, validate *validator.Validate, logger zerolog.Logger) *DocumentService {
	return &DocumentService{
		documents: documents,
		students:  students,
		uploader:  uploader,
		validator: validate,
		logger:    logger.With().Str("component", "document_service").Logger(),
	}
}

// Upload stores the file with the storage collaborator and records the
// document reference.
func (s *DocumentService) Upload(ctx context.Context, input DocumentUploadInput) (dto.DocumentResponse, error) {
	if _, err := s.students.GetByID(ctx, input.StudentID); err != nil {
		return dto.DocumentResponse{}, err
	}

	// Sniff the content type from the leading bytes, then splice them back
	// so the uploader sees the whole stream.
	header := make([]byte, 3072)
	n, err := io.ReadFull(input.Content, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return dto.DocumentResponse{}, err
	}
	mime := mimetype.Detect(header[:n])
	content := io.MultiReader(bytes.NewReader(header[:n]), input.Content)

	fileURL, err := s.uploader.Upload(ctx, input.FileName, content)
	if err != nil {
		s.logger.Error().Err(err).Str("file_name", input.FileName).Msg("failed to upload document")
		return dto.DocumentResponse{}, err
	}

	title := input.Title
	if title == "" {
		title = input.FileName
	}

	document := models.Document{
		ID:        uuid.NewString(),
		StudentID: input.StudentID,
		Title:     title,
		FileURL:   fileURL,
		MimeType:  mime.String(),
		SizeBytes: input.Size,
		Status:    models.DocumentStatusPending,
		Metadata: datatypes.JSONMap{
			"file_name": input.FileName,
			"file_size": input.Size,
			"mime_type": mime.String(),
		},
	}
	if err := s.documents.Create(ctx, &document); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(document), nil
}

// Get fetches one document reference.
func (s *DocumentService) Get(ctx context.Context, id string) (dto.DocumentResponse, error) {
	document, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	return dto.NewDocumentResponse(document), nil
}

// Update applies the provided fields to a document reference.
func (s *DocumentService) Update(ctx context.Context, id string, payload dto.DocumentUpdateRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	document, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if payload.Title != nil {
		document.Title = *payload.Title
	}
	if payload.Metadata != nil {
		document.Metadata = datatypes.JSONMap(payload.Metadata)
	}

	if err := s.documents.Update(ctx, &document); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(document), nil
}

// SetStatus moves a document through its review states.
func (s *DocumentService) SetStatus(ctx context.Context, id, status string) (dto.DocumentResponse, error) {
	document, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	document.Status = status
	if err := s.documents.Update(ctx, &document); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(document), nil
}

// Delete removes the document reference and asks the storage collaborator to
// drop the content.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	document, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}

	if document.FileURL != "" {
		if err := s.uploader.Delete(ctx, document.FileURL); err != nil {
			// The reference is already gone; an orphaned asset is logged,
			// not surfaced.
			s.logger.Warn().Err(err).Str("document_id", id).Msg("failed to delete stored file")
		}
	}
	return nil
}

// ListByStudent returns a page of a student's documents.
func (s *DocumentService) ListByStudent(ctx context.Context, studentID string, page, limit int) (dto.DocumentListResponse, error) {
	page, limit = normalizePage(page, limit)

	documents, total, err := s.documents.ListByStudent(ctx, studentID, page, limit)
	if err != nil {
		return dto.DocumentListResponse{}, err
	}

	data := make([]dto.DocumentResponse, 0, len(documents))
	for _, document := range documents {
		data = append(data, dto.NewDocumentResponse(document))
	}

	return dto.DocumentListResponse{
		Data:       data,
		Pagination: dto.NewPaginationMeta(page, limit, total),
	}, nil
}
