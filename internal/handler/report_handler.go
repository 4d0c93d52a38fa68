package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/service"
	"github.com/noah-isme/arsip-go-api/internal/utils"
)

// ReportHandler wires the reporting collaborator endpoints.
type ReportHandler struct {
	reports *service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches report routes to the router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/activity.csv", h.activityCSV)
	router.Get("/stats.csv", h.statsCSV)
}

func (h *ReportHandler) activityCSV(c *fiber.Ctx) error {
	dateFrom, err := parseQueryDate(c, "date_from")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid date_from")
	}
	dateTo, err := parseQueryDate(c, "date_to")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid date_to")
	}

	report, err := h.reports.ActivityCSV(c.Context(), dto.TrackingListRequest{
		UserID:     c.Query("user_id"),
		StudentID:  c.Query("student_id"),
		DocumentID: c.Query("document_id"),
		ActionType: c.Query("action_type"),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to render activity report")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render activity report")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="activity.csv"`)
	return c.Send(report)
}

func (h *ReportHandler) statsCSV(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	report, err := h.reports.SystemStatsCSV(c.Context(), days)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to render stats report")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render stats report")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="stats.csv"`)
	return c.Send(report)
}
