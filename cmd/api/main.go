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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gradewise/exam-api/internal/config"
	"github.com/gradewise/exam-api/internal/database"
	"github.com/gradewise/exam-api/internal/handler"
	"github.com/gradewise/exam-api/internal/middleware"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/repository"
	"github.com/gradewise/exam-api/internal/router"
	"github.com/gradewise/exam-api/internal/service"
	cloud "github.com/gradewise/exam-api/pkg/cloudinary"
	"github.com/gradewise/exam-api/pkg/segmenter"
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

	if err := db.AutoMigrate(
		&models.Exam{},
		&models.Subject{},
		&models.ExamSubject{},
		&models.StudentSubmission{},
		&models.EvaluationResult{},
		&models.GradingNotification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, notification fan-out via redis disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, notification fan-out via nats disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var seg segmenter.Segmenter = segmenter.Noop{}
	if cfg.SegmenterURL != "" {
		httpSeg, err := segmenter.New(segmenter.Config{
			BaseURL: cfg.SegmenterURL,
			Timeout: cfg.SegmenterTimeout,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create segmenter client: %v", err)
		}
		seg = httpSeg
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotifyChannelBase, natsConn, validate, logger)
	subjectService := service.NewSubjectService(subjectRepo, examRepo, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, examRepo, uploader, seg, service.SubmissionLimits{
		MaxFiles:      cfg.UploadMaxFiles,
		MaxFileSizeMB: cfg.UploadMaxSizeMB,
	}, cfg.SegmenterTimeout, validate, logger)
	resultService := service.NewResultService(resultRepo, examRepo, notificationService, validate, logger)
	statisticsService := service.NewStatisticsService(resultRepo, logger)

	examHandler := handler.NewExamHandler(subjectService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	resultHandler := handler.NewResultHandler(resultService, statisticsService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * cfg.UploadMaxFiles * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:         examHandler,
		SubmissionHandler:   submissionHandler,
		ResultHandler:       resultHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimit:     middleware.RateLimit("submissions", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
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

	log.Println("server stopped")
}
