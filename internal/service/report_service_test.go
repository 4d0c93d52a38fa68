package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arsip-go-api/internal/dto"
	"github.com/noah-isme/arsip-go-api/internal/models"
)

func TestReportServiceActivityCSVPagesThroughTheTrail(t *testing.T) {
	repo := &memoryTrackingRepo{}
	tracking := NewTrackingService(repo, nil, testLogger())
	svc := NewReportService(tracking, testLogger())

	for i := 0; i < 5; i++ {
		_, err := tracking.LogDocumentUpload(context.Background(), "user-1", TrackingInput{})
		require.NoError(t, err)
	}

	payload, err := svc.ActivityCSV(context.Background(), dto.TrackingListRequest{Limit: 2})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, []string{"id", "created_at", "user_id", "action", "action_type", "student_id", "document_id", "ip_address", "description"}, rows[0])
	require.Equal(t, "user-1", rows[1][2])
	require.Equal(t, "Unggah Dokumen", rows[1][3])
	require.Equal(t, string(models.ActionDocumentUpload), rows[1][4])
}

func TestReportServiceSystemStatsCSVSections(t *testing.T) {
	repo := &memoryTrackingRepo{records: []models.TrackingRecord{
		{ID: "a", UserID: "user-1", ActionType: models.ActionUserLogin, CreatedAt: time.Now().UTC()},
		{ID: "b", UserID: "user-2", ActionType: models.ActionDocumentUpload, CreatedAt: time.Now().UTC()},
	}}
	tracking := NewTrackingService(repo, nil, testLogger())
	svc := NewReportService(tracking, testLogger())

	payload, err := svc.SystemStatsCSV(context.Background(), 30)
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"total_actions", "2"}, rows[0])

	headers := make([]string, 0)
	for _, row := range rows {
		if len(row) == 2 && (row[0] == "action_type" || row[0] == "user_id" || row[0] == "date") {
			headers = append(headers, row[0])
		}
	}
	require.Equal(t, []string{"action_type", "user_id", "date"}, headers)
}
