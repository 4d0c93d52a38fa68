package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/observability"
	"github.com/noah-isme/arsip-go-api/internal/service"
)

const (
	trackerLocal        = "tracking_service"
	stagedStudentLocal  = "tracking_staged_student_id"
	stagedDocumentLocal = "tracking_staged_document_id"
)

// inflight counts deferred audit writes so shutdown and tests can drain them.
var inflight sync.WaitGroup

// DrainPending blocks until every scheduled audit write has finished.
func DrainPending() {
	inflight.Wait()
}

// AttachTracker stores a request-scoped tracking service handle so handlers
// and instrumentation stages can capture events without their own wiring.
func AttachTracker(svc *service.TrackingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(trackerLocal, svc)
		return c.Next()
	}
}

// TrackerFromCtx returns the request-scoped tracking service, or nil when
// the attachment stage did not run.
func TrackerFromCtx(c *fiber.Ctx) *service.TrackingService {
	if v := c.Locals(trackerLocal); v != nil {
		if svc, ok := v.(*service.TrackingService); ok {
			return svc
		}
	}
	return nil
}

// StageStudentID lets a handler stage the student a response concerns, for
// instrumentation stages whose extractors cannot see it.
func StageStudentID(c *fiber.Ctx, id string) {
	c.Locals(stagedStudentLocal, id)
}

// StageDocumentID lets a handler stage the document a response concerns.
func StageDocumentID(c *fiber.Ctx, id string) {
	c.Locals(stagedDocumentLocal, id)
}

func stagedValue(c *fiber.Ctx, key string) string {
	if v := c.Locals(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Extractor derives an identifier from the finished request. Returned values
// may alias fiber's request buffers; the capture stage copies them before
// handing them to the deferred write.
type Extractor func(c *fiber.Ctx) string

// MetadataExtractor derives contextual metadata from the finished request.
// Top-level string values are copied by the capture stage; extractors that
// return nested structures must detach those from request memory themselves.
type MetadataExtractor func(c *fiber.Ctx) map[string]interface{}

// AutoTrackOptions parameterizes an automatic capture stage.
type AutoTrackOptions struct {
	// StudentID and DocumentID extract subject identifiers; their result
	// takes precedence over values staged by the handler.
	StudentID  Extractor
	DocumentID Extractor
	Metadata   MetadataExtractor
	// RequirePrincipal marks routes that must carry an authenticated user;
	// a missing principal is then counted as a dropped event instead of
	// silently skipped.
	RequirePrincipal bool
	Logger           *zerolog.Logger
}

// ParamExtractor extracts a route parameter, for the common case where the
// subject id is part of the path.
func ParamExtractor(name string) Extractor {
	return func(c *fiber.Ctx) string {
		return c.Params(name)
	}
}

// AutoTrack wraps the downstream chain in an automatic capture stage for the
// given action type. It observes the outgoing response without altering its
// content or timing: only when the handler produced a 2xx status and the
// payload does not signal failure is a deferred, non-blocking audit write
// scheduled. Capture failures are logged and counted, never surfaced.
func AutoTrack(action models.ActionType, opts AutoTrackOptions) fiber.Handler {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "auto_track").Str("action_type", string(action)).Logger()

	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			return nil
		}
		if responseSignalsFailure(c.Response().Body()) {
			return nil
		}

		tracker := TrackerFromCtx(c)
		if tracker == nil {
			logger.Warn().Str("path", c.Path()).Msg("tracking service not attached to request")
			observability.AuditDropped().WithLabelValues("missing_tracker").Inc()
			return nil
		}

		userID := principalFromCtx(c)
		if userID == "" {
			// Anonymous routes degrade gracefully, but a route that declared
			// a principal requirement gets a visible drop.
			if opts.RequirePrincipal {
				logger.Warn().Str("path", c.Path()).Msg("no authenticated principal for audited route")
				observability.AuditDropped().WithLabelValues("missing_principal").Inc()
			}
			return nil
		}

		// Everything the deferred write needs is deep copied out of the
		// fiber context here. Strings from c.Params, c.Get and friends
		// alias fasthttp's per-connection buffers, which the next
		// keep-alive request overwrites once the handler returns.
		input := service.TrackingInput{
			UserID:     userID,
			ActionType: action,
		}
		if studentID := extractOrStaged(c, opts.StudentID, stagedStudentLocal); studentID != "" {
			input.StudentID = &studentID
		}
		if documentID := extractOrStaged(c, opts.DocumentID, stagedDocumentLocal); documentID != "" {
			input.DocumentID = &documentID
		}
		if opts.Metadata != nil {
			input.Metadata = copyMetadata(opts.Metadata(c))
		}
		if ip := ClientIP(c); ip != "" {
			input.IPAddress = &ip
		}
		if ua := fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)); ua != "" {
			input.UserAgent = &ua
		}

		scheduleWrite(tracker, logger, action, "auto", input)
		return nil
	}
}

// Track records an event immediately from inside a handler, for actions that
// do not map cleanly onto a response-observing stage. Failures are isolated
// exactly like automatic capture.
func Track(c *fiber.Ctx, action models.ActionType, input service.TrackingInput) {
	tracker := TrackerFromCtx(c)
	if tracker == nil {
		observability.AuditDropped().WithLabelValues("missing_tracker").Inc()
		return
	}

	if input.UserID == "" {
		input.UserID = principalFromCtx(c)
	}
	if input.UserID == "" {
		observability.AuditDropped().WithLabelValues("missing_principal").Inc()
		return
	}
	if input.IPAddress == nil {
		if ip := ClientIP(c); ip != "" {
			input.IPAddress = &ip
		}
	}
	if input.UserAgent == nil {
		if ua := fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)); ua != "" {
			input.UserAgent = &ua
		}
	}
	input.ActionType = action

	logger := tracker.Logger().With().Str("component", "manual_track").Str("action_type", string(action)).Logger()
	scheduleWrite(tracker, logger, action, "manual", input)
}

// scheduleWrite runs the audit write detached from the request. There is no
// retry and no timeout: the write runs to completion or fails once.
func scheduleWrite(tracker *service.TrackingService, logger zerolog.Logger, action models.ActionType, source string, input service.TrackingInput) {
	inflight.Add(1)
	go func() {
		defer inflight.Done()

		if _, err := tracker.Record(context.Background(), input); err != nil {
			logger.Warn().Err(err).Msg("audit write dropped")
			observability.AuditDropped().WithLabelValues(dropReason(err)).Inc()
			return
		}
		observability.AuditEvents().WithLabelValues(string(action), source).Inc()
	}()
}

func dropReason(err error) string {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return "validation"
	}
	return "storage"
}

func extractOrStaged(c *fiber.Ctx, extractor Extractor, stagedKey string) string {
	if extractor != nil {
		if value := strings.TrimSpace(extractor(c)); value != "" {
			return fiberutils.CopyString(value)
		}
	}
	return fiberutils.CopyString(strings.TrimSpace(stagedValue(c, stagedKey)))
}

// copyMetadata detaches top-level string keys and values from request-owned
// memory so the deferred write can outlive the handler.
func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	copied := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		if s, ok := value.(string); ok {
			copied[fiberutils.CopyString(key)] = fiberutils.CopyString(s)
			continue
		}
		copied[fiberutils.CopyString(key)] = value
	}
	return copied
}

func principalFromCtx(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// ClientIP resolves the caller address, preferring the first entry of a
// proxy-forwarded header over the raw socket address. The result never
// aliases the request buffer and is safe to retain after the handler returns.
func ClientIP(c *fiber.Ctx) string {
	forwarded := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor))
	if forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return fiberutils.CopyString(strings.TrimSpace(forwarded))
	}
	return fiberutils.CopyString(c.IP())
}

// responseSignalsFailure reports whether a JSON payload explicitly carries
// success=false. Non-JSON payloads never signal failure.
func responseSignalsFailure(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	var envelope struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Success != nil && !*envelope.Success
}
