package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/patient-intake/internal/config"
	"github.com/jwalitptl/patient-intake/internal/email"
	"github.com/jwalitptl/patient-intake/internal/handler/health"
	promHandler "github.com/jwalitptl/patient-intake/internal/handler/prometheus"
	"github.com/jwalitptl/patient-intake/internal/middleware"
	"github.com/jwalitptl/patient-intake/internal/repository/postgres"
	"github.com/jwalitptl/patient-intake/pkg/event"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/messaging/redis"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
	"github.com/jwalitptl/patient-intake/pkg/worker"
)

func setupHealthServer(port int, checks []health.Check, metricsHandler *promHandler.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())

	health.NewHandler(checks...).RegisterRoutes(engine)
	engine.GET("/metrics", metricsHandler.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"component": "worker"})

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	workerMetrics := metrics.NewMetrics(cfg.Server.MetricsPrefix, registry)

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(cfg.Redis.Channel),
		log,
		workerMetrics,
	)
	if err != nil {
		log.Fatal(err, "Failed to create outbox processor")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log)

	dispatcher := event.NewDispatcher(log)
	email.RegisterHandlers(dispatcher, email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log))

	healthSrv := setupHealthServer(
		cfg.Outbox.HealthPort,
		[]health.Check{
			{Name: "database", Fn: db.PingContext},
			{Name: "redis", Fn: broker.Ping},
		},
		promHandler.New(cfg.Server.MetricsPrefix, registry),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx, broker, cfg.Redis.Channel); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(err, "Event dispatcher stopped")
			cancel()
		}
	}()

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Shutting down")
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server forced to shutdown")
	}
}
