package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/config"
	"github.com/Alan934/taller-charli-sub000/internal/database"
	"github.com/Alan934/taller-charli-sub000/internal/handlers"
	"github.com/Alan934/taller-charli-sub000/internal/middleware"
	"github.com/Alan934/taller-charli-sub000/internal/services"
	"github.com/Alan934/taller-charli-sub000/internal/utils"
	"github.com/Alan934/taller-charli-sub000/pkg/jwt"
	"github.com/Alan934/taller-charli-sub000/pkg/shopapi"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// draftBackend is the persisted draft storage plus what main needs around it
type draftBackend interface {
	services.DraftStorage
	Ping(ctx context.Context) error
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Taller Charli booking wizard backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Draft storage
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	var (
		storage draftBackend
		purger  services.DraftPurger
	)
	switch cfg.Wizard.DraftStorage {
	case "redis":
		logger.WithField("addr", cfg.Redis.Addr).Info("Connecting to redis...")
		client, err := database.NewRedisClient(startupCtx, cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		storage = database.NewDraftCacheRepository(client, cfg.Wizard.DraftTTL)
	default:
		logger.Info("Connecting to database...")
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		repo := database.NewDraftRepository(db)
		if err := repo.EnsureSchema(startupCtx); err != nil {
			logger.Fatalf("Failed to prepare draft table: %v", err)
		}
		storage = repo
		purger = repo
	}
	logger.WithField("backend", cfg.Wizard.DraftStorage).Info("Draft storage ready")

	var codec services.DraftCodec = services.PlainCodec()
	if cfg.Wizard.DraftEncryptionKey != "" {
		sealer, err := utils.NewDraftSealer(cfg.Wizard.DraftEncryptionKey)
		if err != nil {
			logger.Fatalf("Invalid DRAFT_ENCRYPTION_KEY: %v", err)
		}
		codec = sealer
	} else {
		logger.Warn("DRAFT_ENCRYPTION_KEY not set, drafts are stored in plaintext")
	}

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenExpiry)
	shop := shopapi.NewClient(shopapi.Config{
		BaseURL: cfg.ShopAPI.BaseURL,
		Timeout: cfg.ShopAPI.Timeout,
	})
	zone := cfg.Wizard.Location()

	submitter := services.NewSubmissionService(shop, shop, services.SubmissionConfig{
		MultiVehiclePolicy: services.MultiVehiclePolicy(cfg.Wizard.MultiVehiclePolicy),
		LookupTimeout:      cfg.ShopAPI.Timeout,
	}, logger)

	sessions := services.NewSessionManager(services.SessionDeps{
		Catalog:     shop,
		Slots:       shop,
		Customers:   shop,
		Submitter:   submitter,
		Storage:     storage,
		Codec:       codec,
		Zone:        zone,
		Persistence: services.DraftPersistenceConfig{Namespace: cfg.Wizard.DraftNamespace},
		Availability: services.AvailabilityConfig{
			MaxParallel:                cfg.Wizard.AvailabilityMaxParallel,
			InvalidateOnDurationChange: cfg.Wizard.AvailabilityInvalidateOnDuration,
		},
		Logger: logger,
	}, cfg.Wizard.SessionIdleTimeout, logger)

	cronService := services.NewCronService(sessions, purger, cfg.Wizard.DraftTTL, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	wizardHandler := handlers.NewWizardHandler(zone, cfg.Wizard.AvailabilityWindowDays, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.WizardSessionHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(storage, sessions, cfg.Wizard.DraftStorage))

	v1 := router.Group("/api/v1")
	{
		wizard := v1.Group("/wizard")
		wizard.Use(middleware.AuthMiddleware(jwtService, logger))
		wizard.Use(middleware.WizardSession(sessions, cfg.Server.Environment == "production"))
		wizardHandler.RegisterRoutes(wizard)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler reports whether the draft storage answers
func healthCheckHandler(storage draftBackend, sessions *services.SessionManager, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := storage.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"storage": backend,
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"storage":         backend,
			"wizard_sessions": sessions.Count(),
			"version":         version,
			"timestamp":       time.Now().Unix(),
		})
	}
}
