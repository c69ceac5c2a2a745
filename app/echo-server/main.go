package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phishSentinel/app/echo-server/router"
	"phishSentinel/business/detector"
	"phishSentinel/business/ensemble"
	"phishSentinel/business/signals"
	"phishSentinel/internal/middleware"
	"phishSentinel/internal/repository/notification"
	psqlRepo "phishSentinel/internal/repository/postgres"
	redisRepo "phishSentinel/internal/repository/redis"
	"phishSentinel/internal/rest"
	"phishSentinel/pkg/config"
	"phishSentinel/pkg/database"
	redisdb "phishSentinel/pkg/database/redis"
	"phishSentinel/pkg/logger"
	"phishSentinel/pkg/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.App.Environment); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("Starting Phish Sentinel", "version", cfg.App.Version, "env", cfg.App.Environment)

	metrics.Init()

	db, err := database.InitDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
	}
	defer database.Close(db)

	historyRepo := psqlRepo.NewVerdictRepository(db)
	if err := historyRepo.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}
	logger.Info("Database connected successfully", "driver", cfg.Database.Driver)

	// Session store is optional; without it verdict reads fall back to history.
	var (
		sessionWriter detector.SessionRepository
		sessionReader rest.VerdictReader
	)
	if cfg.Redis.Enabled {
		client, err := redisdb.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer redisdb.CloseRedisClient(client)

		sessions := redisRepo.NewVerdictRepository(client, cfg.Redis.SessionTTL)
		sessionWriter, sessionReader = sessions, sessions
		logger.Info("Redis connected successfully", "session_ttl", cfg.Redis.SessionTTL.String())
	}

	// Load models
	loadManifest := func() (*config.Manifest, error) {
		return config.LoadManifest(cfg.Detector.ManifestPath, cfg.Detector.ModelDir)
	}
	manifest, err := loadManifest()
	if err != nil {
		logger.Fatal("Failed to read model manifest", "path", cfg.Detector.ManifestPath, "error", err)
	}

	urlScorer := ensemble.NewScorer(config.ModelURL)
	contentScorer := ensemble.NewScorer(config.ModelContent)
	metaScorer := ensemble.NewScorer(config.ModelMeta)
	for _, s := range []*ensemble.Scorer{urlScorer, contentScorer, metaScorer} {
		paths := manifest.Models[s.Name()]
		if err := s.LoadFiles(paths.Model, paths.FeatureIndex); err != nil {
			// a scorer that failed to load answers NotReady until a reload succeeds
			logger.Error("Failed to load model", "model", s.Name(), "path", paths.Model, "error", err)
			continue
		}
		m := s.Model()
		logger.Info("Model loaded", "model", s.Name(), "trees", m.NumTrees(), "features", m.NumFeatures())
	}

	// Init delivery + pipeline
	hub := notification.NewVerdictHub(8)
	delivery := detector.NewDelivery(sessionWriter, historyRepo, hub)
	mailjetCfg := notification.MailjetConfig{
		MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
		MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
		MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
		MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
		MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
		AlertRecipientEmail:      cfg.Mailjet.AlertRecipientEmail,
		AlertRecipientName:       cfg.Mailjet.AlertRecipientName,
	}
	if mailjetCfg.Enabled() {
		delivery.WithAlerter(notification.NewMailjetRepository(mailjetCfg))
	}

	pipeline := detector.New(
		urlScorer, contentScorer, metaScorer,
		signals.NewStore(cfg.Detector.StoreCapacity),
		delivery,
		detector.WithInboxSize(cfg.Detector.InboxSize),
		detector.WithDeliveryTimeout(cfg.Detector.DeliveryTimeout),
	)

	runCtx, stopPipeline := context.WithCancel(context.Background())
	pipelineDone := make(chan error, 1)
	go func() { pipelineDone <- pipeline.Run(runCtx) }()

	// Init handler
	detectorHandler := rest.NewDetectorHandler(pipeline, sessionReader, historyRepo, hub)
	modelHandler := rest.NewModelHandler(loadManifest, urlScorer, contentScorer, metaScorer)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.TraceMiddleware())
	e.Use(metrics.Middleware())
	e.Use(echomiddleware.BodyLimit("4M"))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"chrome-extension://*", "http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.HeaderTraceID},
	}))

	// Auth middleware
	authRequired := middleware.AuthMiddleware(cfg.JWT.SecretKey)

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupEventRoutes(api, detectorHandler, authRequired)
	router.SetupTabRoutes(api, detectorHandler, authRequired)
	router.SetupModelRoutes(api, modelHandler, authRequired)
	router.SetupMetricsRoute(e)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Stop the pipeline after the server so in-flight events finish first.
	stopPipeline()
	if err := <-pipelineDone; err != nil {
		logger.Error("Pipeline stopped with error", "error", err)
	}

	logger.Info("Server stopped")
}
