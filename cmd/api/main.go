package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arsip-go-api/internal/config"
	"github.com/noah-isme/arsip-go-api/internal/database"
	"github.com/noah-isme/arsip-go-api/internal/handler"
	"github.com/noah-isme/arsip-go-api/internal/middleware"
	"github.com/noah-isme/arsip-go-api/internal/models"
	"github.com/noah-isme/arsip-go-api/internal/repository"
	"github.com/noah-isme/arsip-go-api/internal/router"
	"github.com/noah-isme/arsip-go-api/internal/service"
	"github.com/noah-isme/arsip-go-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Student{}, &models.Document{}, &models.TrackingRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	uploader, err := storage.NewCloudinaryUploader(storage.CloudinaryConfig{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	trackingRepo := repository.NewTrackingRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)

	trackingService := service.NewTrackingService(trackingRepo, natsConn, logger)
	statsService := service.NewActivityStatsService(trackingService, redisClient, cfg.StatsCacheTTL, logger)
	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.TokenTTL, logger)
	studentService := service.NewStudentService(studentRepo, validate, logger)
	documentService := service.NewDocumentService(documentRepo, studentRepo, uploader, validate, logger)
	reportService := service.NewReportService(trackingService, logger)

	trackingHandler := handler.NewTrackingHandler(trackingService, statsService, validate, cfg.RetentionDays, logger)
	authHandler := handler.NewAuthHandler(authService, logger)
	studentHandler := handler.NewStudentHandler(studentService, logger)
	documentHandler := handler.NewDocumentHandler(documentService, logger)
	reportHandler := handler.NewReportHandler(reportService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TrackingService: trackingService,
		TrackingHandler: trackingHandler,
		AuthHandler:     authHandler,
		StudentHandler:  studentHandler,
		DocumentHandler: documentHandler,
		ReportHandler:   reportHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		Logger:          &logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	// Let deferred audit writes land before the process exits.
	middleware.DrainPending()

	log.Println("server stopped")
}
