package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/arsip-go-api/internal/handler"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/internal/service"
)

const testRetentionDays = 90

type trackingTestEnv struct {
	app      *fiber.App
	tracking *service.TrackingService
	db       *gorm.DB
}

func newTrackingTestEnv(t *testing.T, role string) trackingTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TrackingRecord{}))

	repo := repository.NewTrackingRepository(db)
	tracking := service.NewTrackingService(repo, nil, zerolog.Nop())
	stats := service.NewActivityStatsService(tracking, nil, time.Minute, zerolog.Nop())
	validate := validator.New(validator.WithRequiredStructEnabled())

	app := fiber.New()
	group := app.Group("/api/v1/tracking", func(c *fiber.Ctx) error {
		c.Locals("user_id", "admin-1")
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	handler.NewTrackingHandler(tracking, stats, validate, testRetentionDays, zerolog.Nop()).Register(group)

	return trackingTestEnv{app: app, tracking: tracking, db: db}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestTrackingHandlerCreate(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	body, err := json.Marshal(map[string]interface{}{
		"user_id":     "admin-1",
		"action_type": string(models.ActionDocumentUpload),
		"student_id":  "student-1",
		"metadata":    map[string]interface{}{"file_name": "rapor.pdf"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.True(t, payload.Success)

	var record struct {
		ID                string `json:"id"`
		ActionDisplayName string `json:"action_display_name"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &record))
	require.NotEmpty(t, record.ID)
	require.Equal(t, "Unggah Dokumen", record.ActionDisplayName)
}

func TestTrackingHandlerCreateRejectsUnknownAction(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	body, err := json.Marshal(map[string]interface{}{
		"user_id":     "admin-1",
		"action_type": "NOT_AN_ACTION",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.False(t, payload.Success)

	var violations []string
	require.NoError(t, json.Unmarshal(payload.Details, &violations))
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "NOT_AN_ACTION")
}

func TestTrackingHandlerCreateRequiresAdminRole(t *testing.T) {
	env := newTrackingTestEnv(t, "operator")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTrackingHandlerGetReturnsNotFound(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tracking/missing", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackingHandlerListFiltersByUser(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")
	ctx := context.Background()

	for _, userID := range []string{"user-1", "user-1", "user-2"} {
		_, err := env.tracking.LogUserLogin(ctx, userID, service.TrackingInput{})
		require.NoError(t, err)
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tracking?user_id=user-1", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.True(t, payload.Success)

	var listing struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			TotalItems int64 `json:"totalItems"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &listing))
	require.Len(t, listing.Data, 2)
	require.Equal(t, int64(2), listing.Pagination.TotalItems)
}

func TestTrackingHandlerRejectsInvalidActionDimension(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tracking/action/NOT_AN_ACTION", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackingHandlerSystemStats(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")
	ctx := context.Background()

	_, err := env.tracking.LogStudentCreate(ctx, "admin-1", service.TrackingInput{})
	require.NoError(t, err)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tracking/stats/system?days=7", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.True(t, payload.Success)

	var stats struct {
		TotalActions int64 `json:"total_actions"`
		WindowDays   int   `json:"window_days"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &stats))
	require.Equal(t, int64(1), stats.TotalActions)
	require.Equal(t, 7, stats.WindowDays)
}

func TestTrackingHandlerCleanupValidatesRetention(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/tracking/cleanup?retention_days=0", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/tracking/cleanup?retention_days=30", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &result))
	require.Equal(t, int64(0), result.Deleted)
}

func TestTrackingHandlerCleanupUsesConfiguredDefault(t *testing.T) {
	env := newTrackingTestEnv(t, "admin")

	stale := models.TrackingRecord{
		ID:         "trail-old",
		UserID:     "admin-1",
		ActionType: models.ActionUserLogin,
		CreatedAt:  time.Now().AddDate(0, 0, -(testRetentionDays + 10)),
	}
	require.NoError(t, env.db.Create(&stale).Error)
	fresh := models.TrackingRecord{
		ID:         "trail-new",
		UserID:     "admin-1",
		ActionType: models.ActionUserLogin,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, env.db.Create(&fresh).Error)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/tracking/cleanup", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &result))
	require.Equal(t, int64(1), result.Deleted)

	var remaining int64
	require.NoError(t, env.db.Model(&models.TrackingRecord{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}
