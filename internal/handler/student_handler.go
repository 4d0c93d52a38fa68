package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/middleware"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/internal/service"
	"github.com/noah-isme/arsip-go-api/internal/utils"
)

// StudentHandler wires student CRUD endpoints with automatic audit capture.
type StudentHandler struct {
	students *service.StudentService
	logger   zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students *service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		students: students,
		logger:   logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student routes to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	idExtractor := middleware.ParamExtractor("id")

	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", middleware.AutoTrack(models.ActionStudentCreate, middleware.AutoTrackOptions{
		RequirePrincipal: true,
		Logger:           &h.logger,
	}), h.create)
	router.Patch("/:id", middleware.AutoTrack(models.ActionStudentUpdate, middleware.AutoTrackOptions{
		StudentID:        idExtractor,
		RequirePrincipal: true,
		Logger:           &h.logger,
	}), h.update)
	router.Delete("/:id", middleware.AutoTrack(models.ActionStudentDelete, middleware.AutoTrackOptions{
		StudentID:        idExtractor,
		RequirePrincipal: true,
		Logger:           &h.logger,
	}), h.delete)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	page, limit, err := pagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.students.List(c.Context(), repository.StudentFilter{
		Search:   c.Query("search"),
		Class:    c.Query("class"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", response)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	student, err := h.students.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch student")
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.StudentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.Create(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create student")
	}

	// The capture stage cannot see the generated id in the path; stage it.
	middleware.StageStudentID(c, student.ID)

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	var payload dto.StudentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.Update(c.Context(), c.Params("id"), payload)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update student")
		}
	}

	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) delete(c *fiber.Ctx) error {
	if err := h.students.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete student")
	}

	return utils.SendSuccess(c, "student deleted", nil)
}
