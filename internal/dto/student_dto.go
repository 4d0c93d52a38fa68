package dto

import (
	"time"

	"github.com/noah-isme/arsip-go-api/internal/models"
)

// StudentCreateRequest is the payload for registering a student.
type StudentCreateRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
	Class string `json:"class" validate:"omitempty,max=64"`
}

// StudentUpdateRequest captures partial student updates.
type StudentUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Class  *string `json:"class" validate:"omitempty,max=64"`
	Status *string `json:"status" validate:"omitempty,oneof=active inactive archived"`
}

// StudentResponse serializes student data.
type StudentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Class     string    `json:"class"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StudentListResponse wraps a paginated student listing.
type StudentListResponse struct {
	Data       []StudentResponse `json:"data"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a student model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:        student.ID,
		Name:      student.Name,
		Email:     student.Email,
		Class:     student.Class,
		Status:    student.Status,
		CreatedAt: student.CreatedAt,
		UpdatedAt: student.UpdatedAt,
	}
}
