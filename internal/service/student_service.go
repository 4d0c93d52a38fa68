package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
)

// StudentService implements student CRUD. The audit trail observes these
// operations from the instrumentation layer, not from here.
type StudentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger) *StudentService {
	return &StudentService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

// Create registers a student.
func (s *StudentService) Create(ctx context.Context, payload dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		ID:     uuid.NewString(),
		Name:   payload.Name,
		Email:  payload.Email,
		Class:  payload.Class,
		Status: models.StudentStatusActive,
	}
	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

// Get fetches one student.
func (s *StudentService) Get(ctx context.Context, id string) (dto.StudentResponse, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

// Update applies the provided fields to a student. Omitted fields are left
// untouched.
func (s *StudentService) Update(ctx context.Context, id string, payload dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if payload.Name != nil {
		student.Name = *payload.Name
	}
	if payload.Email != nil {
		student.Email = *payload.Email
	}
	if payload.Class != nil {
		student.Class = *payload.Class
	}
	if payload.Status != nil {
		student.Status = *payload.Status
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List returns a filtered page of students.
func (s *StudentService) List(ctx context.Context, filter repository.StudentFilter) (dto.StudentListResponse, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	data := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		data = append(data, dto.NewStudentResponse(student))
	}

	return dto.StudentListResponse{
		Data:       data,
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}
