package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/middleware"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/internal/service"
	"github.com/noah-isme/arsip-go-api/internal/utils"
)

// TrackingHandler wires the audit trail endpoints.
type TrackingHandler struct {
	tracking      *service.TrackingService
	stats         *service.ActivityStatsService
	validator     *validator.Validate
	retentionDays int
	logger        zerolog.Logger
}

// NewTrackingHandler constructs the handler. retentionDays is the default
// window for the cleanup endpoint when the caller does not pass one.
func NewTrackingHandler(tracking *service.TrackingService, stats *service.ActivityStatsService, validate *validator.Validate, retentionDays int, logger zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{
		tracking:      tracking,
		stats:         stats,
		validator:     validate,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "tracking_handler").Logger(),
	}
}

// Register attaches tracking routes to the router group.
func (h *TrackingHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireAdmin(), h.create)
	router.Get("", h.list)
	router.Get("/recent", h.recent)
	router.Get("/stats/system", h.systemStats)
	router.Get("/stats/user/:userId", h.userStats)
	router.Get("/student/:studentId", h.byStudent)
	router.Get("/document/:documentId", h.byDocument)
	router.Get("/user/:userId", h.byUser)
	router.Get("/action/:actionType", h.byActionType)
	router.Delete("/cleanup", middleware.RequireAdmin(), h.cleanup)
	router.Get("/:id", h.get)
}

func (h *TrackingHandler) create(c *fiber.Ctx) error {
	var payload dto.TrackingCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", err.Error())
	}

	record, err := h.tracking.Record(c.Context(), service.TrackingInput{
		UserID:      payload.UserID,
		StudentID:   payload.StudentID,
		DocumentID:  payload.DocumentID,
		ActionType:  models.ActionType(payload.ActionType),
		Description: payload.Description,
		Metadata:    payload.Metadata,
		IPAddress:   payload.IPAddress,
		UserAgent:   payload.UserAgent,
	})
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", validationErr.Violations)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create tracking record")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create tracking record")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "tracking record created", record)
}

func (h *TrackingHandler) list(c *fiber.Ctx) error {
	page, limit, err := pagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	dateFrom, err := parseQueryDate(c, "date_from")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid date_from")
	}
	dateTo, err := parseQueryDate(c, "date_to")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid date_to")
	}

	response, err := h.tracking.List(c.Context(), dto.TrackingListRequest{
		UserID:     c.Query("user_id"),
		StudentID:  c.Query("student_id"),
		DocumentID: c.Query("document_id"),
		ActionType: c.Query("action_type"),
		IPAddress:  c.Query("ip_address"),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Page:       page,
		Limit:      limit,
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list tracking records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list tracking records")
	}

	return utils.SendSuccess(c, "tracking records retrieved", response)
}

func (h *TrackingHandler) get(c *fiber.Ctx) error {
	record, err := h.tracking.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "tracking record not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch tracking record")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch tracking record")
	}

	return utils.SendSuccess(c, "tracking record retrieved", record)
}

func (h *TrackingHandler) recent(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	records, err := h.tracking.Recent(c.Context(), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list recent activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list recent activity")
	}

	return utils.SendSuccess(c, "recent activity retrieved", records)
}

func (h *TrackingHandler) byStudent(c *fiber.Ctx) error {
	return h.dimension(c, func(page, limit int) (dto.TrackingListResponse, error) {
		return h.tracking.ListByStudent(c.Context(), c.Params("studentId"), page, limit)
	})
}

func (h *TrackingHandler) byDocument(c *fiber.Ctx) error {
	return h.dimension(c, func(page, limit int) (dto.TrackingListResponse, error) {
		return h.tracking.ListByDocument(c.Context(), c.Params("documentId"), page, limit)
	})
}

func (h *TrackingHandler) byUser(c *fiber.Ctx) error {
	return h.dimension(c, func(page, limit int) (dto.TrackingListResponse, error) {
		return h.tracking.ListByUser(c.Context(), c.Params("userId"), page, limit)
	})
}

func (h *TrackingHandler) byActionType(c *fiber.Ctx) error {
	action := models.ActionType(c.Params("actionType"))
	if !models.IsValidActionType(action) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid action type")
	}
	return h.dimension(c, func(page, limit int) (dto.TrackingListResponse, error) {
		return h.tracking.ListByActionType(c.Context(), action, page, limit)
	})
}

func (h *TrackingHandler) dimension(c *fiber.Ctx, query func(page, limit int) (dto.TrackingListResponse, error)) error {
	page, limit, err := pagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := query(page, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to run dimension query")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list tracking records")
	}

	return utils.SendSuccess(c, "tracking records retrieved", response)
}

func (h *TrackingHandler) userStats(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	stats, err := h.stats.UserStats(c.Context(), c.Params("userId"), days)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to aggregate user stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to aggregate user stats")
	}

	return utils.SendSuccess(c, "user activity stats retrieved", stats)
}

func (h *TrackingHandler) systemStats(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	stats, err := h.stats.SystemStats(c.Context(), days)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to aggregate system stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to aggregate system stats")
	}

	return utils.SendSuccess(c, "system activity stats retrieved", stats)
}

func (h *TrackingHandler) cleanup(c *fiber.Ctx) error {
	retentionDays := h.retentionDays
	if c.Query("retention_days") != "" {
		parsed, err := parseQueryInt(c, "retention_days")
		if err != nil || parsed <= 0 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid retention_days")
		}
		retentionDays = parsed
	}
	if retentionDays <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid retention_days")
	}

	deleted, err := h.tracking.Cleanup(c.Context(), retentionDays)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("retention cleanup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "retention cleanup failed")
	}

	requestLogger(h.logger, c).Info().
		Str("requested_by", userIDFromContext(c)).
		Int("retention_days", retentionDays).
		Int64("deleted", deleted).
		Msg("retention cleanup requested")

	return utils.SendSuccess(c, "retention cleanup completed", fiber.Map{"deleted": deleted})
}
