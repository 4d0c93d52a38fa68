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

// DocumentHandler wires document endpoints with automatic audit capture.
type DocumentHandler struct {
	documents *service.DocumentService
	logger    zerolog.Logger
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents *service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With().Str("component", "document_handler").Logger(),
	}
}

// Register attaches document routes to the router group.
func (h *DocumentHandler) Register(router fiber.Router) {
	idExtractor := middleware.ParamExtractor("id")
	track := func(action models.ActionType) fiber.Handler {
		return middleware.AutoTrack(action, middleware.AutoTrackOptions{
			DocumentID:       idExtractor,
			RequirePrincipal: true,
			Logger:           &h.logger,
		})
	}

	router.Get("/student/:studentId", h.listByStudent)
	router.Get("/:id", h.get)
	router.Post("", middleware.AutoTrack(models.ActionDocumentUpload, middleware.AutoTrackOptions{
		StudentID: func(c *fiber.Ctx) string { return c.FormValue("student_id") },
		Metadata: func(c *fiber.Ctx) map[string]interface{} {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				return nil
			}
			return map[string]interface{}{
				"file_name": fileHeader.Filename,
				"file_size": fileHeader.Size,
			}
		},
		RequirePrincipal: true,
		Logger:           &h.logger,
	}), h.upload)
	router.Patch("/:id", track(models.ActionDocumentUpdate), h.update)
	router.Delete("/:id", track(models.ActionDocumentDelete), h.delete)
	router.Post("/:id/approve", track(models.ActionDocumentApprove), h.setStatus(models.DocumentStatusApproved))
	router.Post("/:id/reject", track(models.ActionDocumentReject), h.setStatus(models.DocumentStatusRejected))
	router.Post("/:id/review", track(models.ActionDocumentReview), h.setStatus(models.DocumentStatusReviewed))
}

func (h *DocumentHandler) upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	studentID := c.FormValue("student_id")
	if studentID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student_id is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to open uploaded file")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read uploaded file")
	}
	defer file.Close()

	document, err := h.documents.Upload(c.Context(), service.DocumentUploadInput{
		StudentID: studentID,
		Title:     c.FormValue("title"),
		FileName:  fileHeader.Filename,
		Size:      fileHeader.Size,
		Content:   file,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to upload document")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to upload document")
	}

	middleware.StageDocumentID(c, document.ID)

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", document)
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	document, err := h.documents.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "document not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch document")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch document")
	}

	return utils.SendSuccess(c, "document retrieved", document)
}

func (h *DocumentHandler) update(c *fiber.Ctx) error {
	var payload dto.DocumentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	document, err := h.documents.Update(c.Context(), c.Params("id"), payload)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDocumentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "document not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update document")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update document")
		}
	}

	return utils.SendSuccess(c, "document updated", document)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	if err := h.documents.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "document not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete document")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete document")
	}

	return utils.SendSuccess(c, "document deleted", nil)
}

func (h *DocumentHandler) setStatus(status string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		document, err := h.documents.SetStatus(c.Context(), c.Params("id"), status)
		if err != nil {
			if errors.Is(err, repository.ErrDocumentNotFound) {
				return utils.SendError(c, fiber.StatusNotFound, "document not found")
			}
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to change document status")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to change document status")
		}

		return utils.SendSuccess(c, "document status updated", document)
	}
}

func (h *DocumentHandler) listByStudent(c *fiber.Ctx) error {
	page, limit, err := pagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.documents.ListByStudent(c.Context(), c.Params("studentId"), page, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list documents")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list documents")
	}

	return utils.SendSuccess(c, "documents retrieved", response)
}
