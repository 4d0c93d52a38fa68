package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/config"
	"github.com/noah-isme/arsip-go-api/internal/handler"
	"github.com/noah-isme/arsip-go-api/internal/middleware"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/observability"
	"github.com/noah-isme/arsip-go-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TrackingService *service.TrackingService
	TrackingHandler *handler.TrackingHandler
	AuthHandler     *handler.AuthHandler
	StudentHandler  *handler.StudentHandler
	DocumentHandler *handler.DocumentHandler
	ReportHandler   *handler.ReportHandler
	JWTMiddleware   fiber.Handler
	Logger          *zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// The tracker handle rides on every request so handlers and capture
	// stages can record events without their own wiring.
	if deps.TrackingService != nil {
		api.Use(middleware.AttachTracker(deps.TrackingService))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		auth.Post("/login", middleware.AutoTrack(models.ActionUserLogin, middleware.AutoTrackOptions{
			Logger: deps.Logger,
		}), deps.AuthHandler.Login)
		auth.Post("/logout", jwtMiddleware, middleware.AutoTrack(models.ActionUserLogout, middleware.AutoTrackOptions{
			RequirePrincipal: true,
			Logger:           deps.Logger,
		}), deps.AuthHandler.Logout)
	}

	if deps.TrackingHandler != nil {
		tracking := api.Group("/tracking", jwtMiddleware)
		deps.TrackingHandler.Register(tracking)
	}

	if deps.StudentHandler != nil {
		students := api.Group("/students", jwtMiddleware)
		deps.StudentHandler.Register(students)
	}

	if deps.DocumentHandler != nil {
		documents := api.Group("/documents", jwtMiddleware)
		deps.DocumentHandler.Register(documents)
	}

	if deps.ReportHandler != nil {
		reports := api.Group("/reports", jwtMiddleware)
		deps.ReportHandler.Register(reports)
	}
}
