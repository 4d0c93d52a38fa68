package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/dto"
)

// reportMaxRows caps a single export.
const reportMaxRows = 10000

// TrackingReader is the narrow surface the reporting collaborator consumes:
// filtered listings and aggregate statistics, nothing else.
type TrackingReader interface {
	List(ctx context.Context, req dto.TrackingListRequest) (dto.TrackingListResponse, error)
	SystemStats(ctx context.Context, days int) (dto.ActivityStatsResponse, error)
}

// ReportService renders activity exports. All record fields arrive
// display-ready from the API view, including the action display name.
type ReportService struct {
	tracking TrackingReader
	logger   zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(tracking TrackingReader, logger zerolog.Logger) *ReportService {
	return &ReportService{
		tracking: tracking,
		logger:   logger.With().Str("component", "report_service").Logger(),
	}
}

// ActivityCSV renders the filtered activity trail as CSV.
func (s *ReportService) ActivityCSV(ctx context.Context, req dto.TrackingListRequest) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	header := []string{"id", "created_at", "user_id", "action", "action_type", "student_id", "document_id", "ip_address", "description"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}

	req.Page = 1
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 500
	}

	written := 0
	for written < reportMaxRows {
		page, err := s.tracking.List(ctx, req)
		if err != nil {
			return nil, err
		}

		for _, record := range page.Data {
			row := []string{
				record.ID,
				record.CreatedAt,
				record.UserID,
				record.ActionDisplayName,
				string(record.ActionType),
				deref(record.StudentID),
				deref(record.DocumentID),
				record.IPAddress,
				record.Description,
			}
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write report row: %w", err)
			}
			written++
		}

		if len(page.Data) == 0 || req.Page >= page.Pagination.TotalPages {
			break
		}
		req.Page++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush report: %w", err)
	}

	s.logger.Info().Int("rows", written).Msg("activity report rendered")
	return buffer.Bytes(), nil
}

// SystemStatsCSV renders system-wide aggregates as CSV sections.
func (s *ReportService) SystemStatsCSV(ctx context.Context, days int) ([]byte, error) {
	stats, err := s.tracking.SystemStats(ctx, days)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	rows := [][]string{
		{"total_actions", strconv.FormatInt(stats.TotalActions, 10)},
		{},
		{"action_type", "count"},
	}
	for _, row := range stats.ActionsByType {
		rows = append(rows, []string{string(row.ActionType), strconv.FormatInt(row.Count, 10)})
	}
	rows = append(rows, nil, []string{"user_id", "count"})
	for _, row := range stats.ActionsByUser {
		rows = append(rows, []string{row.UserID, strconv.FormatInt(row.Count, 10)})
	}
	rows = append(rows, nil, []string{"date", "count"})
	for _, row := range stats.DailyActivity {
		rows = append(rows, []string{row.Date, strconv.FormatInt(row.Count, 10)})
	}

	for _, row := range rows {
		if len(row) == 0 {
			row = []string{""}
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write stats report: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush stats report: %w", err)
	}
	return buffer.Bytes(), nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
