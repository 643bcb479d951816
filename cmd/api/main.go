package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/patient-intake/internal/config"
	"github.com/jwalitptl/patient-intake/internal/handler/health"
	patientHandler "github.com/jwalitptl/patient-intake/internal/handler/patient"
	promHandler "github.com/jwalitptl/patient-intake/internal/handler/prometheus"
	"github.com/jwalitptl/patient-intake/internal/handler/reference"
	userHandler "github.com/jwalitptl/patient-intake/internal/handler/user"
	"github.com/jwalitptl/patient-intake/internal/middleware"
	"github.com/jwalitptl/patient-intake/internal/repository/postgres"
	"github.com/jwalitptl/patient-intake/internal/router"
	patientService "github.com/jwalitptl/patient-intake/internal/service/patient"
	userService "github.com/jwalitptl/patient-intake/internal/service/user"
	"github.com/jwalitptl/patient-intake/pkg/auth"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
	"github.com/jwalitptl/patient-intake/pkg/security"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})
	if cfg.Log.JSON {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = postgres.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.Fatal(err, "Failed to apply schema")
	}

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(baseRepo)
	patientRepo := postgres.NewPatientRepository(baseRepo)
	documentRepo := postgres.NewDocumentRepository(baseRepo)

	tokens, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	if err != nil {
		log.Fatal(err, "Failed to initialize token service")
	}
	encryptor, err := security.NewDocumentEncryptor(cfg.Documents.EncryptionSecret)
	if err != nil {
		log.Fatal(err, "Failed to initialize document encryption")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(cfg.Server.MetricsPrefix, registry)

	// Initialize services
	userSvc := userService.NewService(userRepo, tokens, log)
	patientSvc := patientService.NewService(
		patientRepo,
		userRepo,
		documentRepo,
		encryptor,
		patientService.Config{
			MaxDocumentSize:   cfg.Documents.MaxSize,
			AllowedTypes:      cfg.Documents.AllowedTypes,
			DocumentURLPrefix: cfg.Documents.URLPrefix,
		},
		log,
		patientService.WithMetrics(appMetrics),
	)

	if err := middleware.RegisterValidation(); err != nil {
		log.Fatal(err, "Failed to register validation rules")
	}

	// Initialize handlers
	healthHandler := health.NewHandler(health.Check{Name: "database", Fn: db.PingContext})
	metricsHandler := promHandler.New(cfg.Server.MetricsPrefix, registry)

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadSize = cfg.Documents.MaxSize + 1<<20

	r := router.NewRouter(
		middleware.NewAuthMiddleware(tokens),
		userHandler.NewHandler(userSvc),
		patientHandler.NewHandler(patientSvc, cfg.Documents.MaxSize),
		reference.NewHandler(),
		healthHandler,
		metricsHandler,
		router.RouterConfig{
			RateLimitEnabled:   cfg.RateLimit.Enabled,
			RateLimit:          rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:          cfg.RateLimit.Burst,
			CORSConfig:         middleware.DefaultCORSConfig(cfg.Client.AppURL),
			SizeLimit:          sizeLimit,
			MaxMultipartMemory: 8 << 20,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
