package middleware

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/internal/service"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type captureTrackingRepo struct {
	mu        sync.Mutex
	records   []models.TrackingRecord
	createErr error
}

func (m *captureTrackingRepo) Create(ctx context.Context, record *models.TrackingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *captureTrackingRepo) stored() []models.TrackingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TrackingRecord(nil), m.records...)
}

func (m *captureTrackingRepo) Update(ctx context.Context, record *models.TrackingRecord) error {
	return repository.ErrImmutableRecord
}

func (m *captureTrackingRepo) GetByID(ctx context.Context, id string) (models.TrackingRecord, error) {
	return models.TrackingRecord{}, repository.ErrRecordNotFound
}

func (m *captureTrackingRepo) List(ctx context.Context, filter repository.TrackingFilter) ([]models.TrackingRecord, int64, error) {
	return nil, 0, nil
}

func (m *captureTrackingRepo) ListByStudent(ctx context.Context, studentID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return nil, 0, nil
}

func (m *captureTrackingRepo) ListByDocument(ctx context.Context, documentID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return nil, 0, nil
}

func (m *captureTrackingRepo) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return nil, 0, nil
}

func (m *captureTrackingRepo) ListByActionType(ctx context.Context, action models.ActionType, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return nil, 0, nil
}

func (m *captureTrackingRepo) Recent(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	return nil, nil
}

func (m *captureTrackingRepo) UserStats(ctx context.Context, userID string, days int) (repository.ActivityStats, error) {
	return repository.ActivityStats{}, nil
}

func (m *captureTrackingRepo) SystemStats(ctx context.Context, days int) (repository.ActivityStats, error) {
	return repository.ActivityStats{}, nil
}

func (m *captureTrackingRepo) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func newTrackedApp(repo repository.TrackingRepository) *fiber.App {
	app := fiber.New()
	app.Use(AttachTracker(service.NewTrackingService(repo, nil, testLogger())))
	return app
}

func authenticate(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func TestAutoTrackRecordsOnSuccessfulResponse(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/students", authenticate("admin-1"), AutoTrack(models.ActionStudentCreate, AutoTrackOptions{}), func(c *fiber.Ctx) error {
		StageStudentID(c, "student-7")
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	})

	request := httptest.NewRequest(fiber.MethodPost, "/students", nil)
	request.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.9, 10.0.0.1")
	request.Header.Set(fiber.HeaderUserAgent, "arsip-test/1.0")

	response, err := app.Test(request)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, response.StatusCode)

	DrainPending()
	records := repo.stored()
	require.Len(t, records, 1)
	require.Equal(t, "admin-1", records[0].UserID)
	require.Equal(t, models.ActionStudentCreate, records[0].ActionType)
	require.NotNil(t, records[0].StudentID)
	require.Equal(t, "student-7", *records[0].StudentID)
	require.Equal(t, "203.0.113.9", records[0].IPAddress)
	require.Equal(t, "arsip-test/1.0", records[0].UserAgent)
}

func TestAutoTrackSkipsFailedResponses(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/forbidden", authenticate("admin-1"), AutoTrack(models.ActionStudentDelete, AutoTrackOptions{}), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "forbidden"})
	})
	app.Post("/soft-failure", authenticate("admin-1"), AutoTrack(models.ActionStudentDelete, AutoTrackOptions{}), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": false, "message": "rejected"})
	})

	for _, path := range []string{"/forbidden", "/soft-failure"} {
		response, err := app.Test(httptest.NewRequest(fiber.MethodPost, path, nil))
		require.NoError(t, err)
		require.NotNil(t, response)
	}

	DrainPending()
	require.Empty(t, repo.stored())
}

func TestAutoTrackExtractorTakesPrecedenceOverStagedValue(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Put("/students/:id", authenticate("admin-1"), AutoTrack(models.ActionStudentUpdate, AutoTrackOptions{
		StudentID: ParamExtractor("id"),
	}), func(c *fiber.Ctx) error {
		StageStudentID(c, "staged-student")
		return c.JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPut, "/students/student-42", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	DrainPending()
	records := repo.stored()
	require.Len(t, records, 1)
	require.Equal(t, "student-42", *records[0].StudentID)
}

func TestAutoTrackFallsBackToStagedValue(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/documents", authenticate("operator-1"), AutoTrack(models.ActionDocumentUpload, AutoTrackOptions{
		DocumentID: func(c *fiber.Ctx) string { return "" },
	}), func(c *fiber.Ctx) error {
		StageDocumentID(c, "doc-9")
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/documents", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, response.StatusCode)

	DrainPending()
	records := repo.stored()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].DocumentID)
	require.Equal(t, "doc-9", *records[0].DocumentID)
}

func TestAutoTrackSkipsAnonymousRequests(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/login", AutoTrack(models.ActionUserLogin, AutoTrackOptions{}), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	DrainPending()
	require.Empty(t, repo.stored())
}

func TestAutoTrackIsolatesStorageFailures(t *testing.T) {
	repo := &captureTrackingRepo{createErr: errors.New("database gone")}
	app := newTrackedApp(repo)

	app.Post("/students", authenticate("admin-1"), AutoTrack(models.ActionStudentCreate, AutoTrackOptions{}), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/students", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, response.StatusCode)

	DrainPending()
	require.Empty(t, repo.stored())
}

func TestManualTrackRecordsFromHandler(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/permissions", authenticate("admin-1"), func(c *fiber.Ctx) error {
		Track(c, models.ActionPermissionChange, service.TrackingInput{
			Metadata: map[string]interface{}{"target_user": "operator-2", "role": "operator"},
		})
		return c.JSON(fiber.Map{"success": true})
	})

	request := httptest.NewRequest(fiber.MethodPost, "/permissions", nil)
	request.Header.Set(fiber.HeaderUserAgent, "arsip-test/1.0")

	response, err := app.Test(request)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	DrainPending()
	records := repo.stored()
	require.Len(t, records, 1)
	require.Equal(t, "admin-1", records[0].UserID)
	require.Equal(t, models.ActionPermissionChange, records[0].ActionType)
	require.Equal(t, "arsip-test/1.0", records[0].UserAgent)
	require.Equal(t, map[string]interface{}{"target_user": "operator-2", "role": "operator"}, records[0].MetadataMap())
}

// Fiber serves with Immutable disabled, so strings read from the request
// alias per-connection buffers that the next keep-alive request overwrites.
// Two requests on one connection must each persist their own values.
func TestAutoTrackDetachesValuesFromConnectionBuffers(t *testing.T) {
	repo := &captureTrackingRepo{}
	app := newTrackedApp(repo)

	app.Post("/students/:id", authenticate("admin-1"), AutoTrack(models.ActionStudentUpdate, AutoTrackOptions{
		StudentID: ParamExtractor("id"),
	}), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	listener := fasthttputil.NewInmemoryListener()
	go func() {
		_ = app.Listener(listener)
	}()
	defer func() {
		require.NoError(t, app.Shutdown())
	}()

	conn, err := listener.Dial()
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	send := func(studentID, userAgent string) {
		request := "POST /students/" + studentID + " HTTP/1.1\r\n" +
			"Host: arsip.test\r\n" +
			"User-Agent: " + userAgent + "\r\n" +
			"Content-Length: 0\r\n\r\n"
		_, err := conn.Write([]byte(request))
		require.NoError(t, err)

		response, err := http.ReadResponse(reader, nil)
		require.NoError(t, err)
		_, err = io.Copy(io.Discard, response.Body)
		require.NoError(t, err)
		require.NoError(t, response.Body.Close())
		require.Equal(t, fiber.StatusOK, response.StatusCode)
	}

	send("student-42", "agent-one/1.0")
	send("student-overwrote-buffers", "agent-two/2.0")

	DrainPending()
	records := repo.stored()
	require.Len(t, records, 2)

	agentBySubject := make(map[string]string, len(records))
	for _, record := range records {
		require.NotNil(t, record.StudentID)
		agentBySubject[*record.StudentID] = record.UserAgent
	}
	require.Equal(t, "agent-one/1.0", agentBySubject["student-42"])
	require.Equal(t, "agent-two/2.0", agentBySubject["student-overwrote-buffers"])
}

func TestManualTrackLogsDroppedWrites(t *testing.T) {
	var logs bytes.Buffer
	repo := &captureTrackingRepo{createErr: errors.New("connection reset")}
	svc := service.NewTrackingService(repo, nil, zerolog.New(&logs))

	app := fiber.New()
	app.Use(AttachTracker(svc))
	app.Post("/permissions", authenticate("admin-1"), func(c *fiber.Ctx) error {
		Track(c, models.ActionPermissionChange, service.TrackingInput{})
		return c.JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/permissions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	DrainPending()
	require.Empty(t, repo.stored())
	require.Contains(t, logs.String(), "audit write dropped")
	require.Contains(t, logs.String(), "manual_track")
}

func TestTrackWithoutTrackerIsANoOp(t *testing.T) {
	app := fiber.New()
	app.Post("/orphan", func(c *fiber.Ctx) error {
		Track(c, models.ActionUserLogout, service.TrackingInput{UserID: "user-1"})
		return c.JSON(fiber.Map{"success": true})
	})

	response, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/orphan", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)
}
