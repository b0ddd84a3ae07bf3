package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/glidebook/glidebook/internal/activities"
	"github.com/glidebook/glidebook/internal/api/router"
	"github.com/glidebook/glidebook/internal/cache"
	appconfig "github.com/glidebook/glidebook/internal/config"
	"github.com/glidebook/glidebook/internal/events"
	"github.com/glidebook/glidebook/internal/observability/metrics"
	"github.com/glidebook/glidebook/internal/organizations"
	"github.com/glidebook/glidebook/internal/payments"
	"github.com/glidebook/glidebook/internal/reservations"
	"github.com/glidebook/glidebook/internal/worker/compensation"
	"github.com/glidebook/glidebook/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting glidebook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pg pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	webhookMetrics := metrics.NewWebhookMetrics(nil)
	reservationMetrics := metrics.NewReservationMetrics(nil)

	// Storage
	orgRepo := organizations.NewCachedRepository(
		organizations.NewRepository(pool),
		cache.New(redisClient, 5*time.Minute),
		logger.Component("organizations"),
	)
	activityRepo := activities.NewRepository(pool)
	reservationRepo := reservations.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	outboxStore := events.NewOutboxStore(pool)
	processedStore := events.NewProcessedStore(pool)

	// Domain services
	registry := activities.NewDefaultRegistry()
	refundQueue := compensation.NewQueue(cfg.RefundQueueSize, logger.Component("compensation"))

	// The ledger drives the reservation service and the service records
	// attempts on the ledger, so the driver is bound after construction.
	driver := &lateDriver{}
	ledger := payments.NewLedger(paymentRepo, driver, logger.Component("payments"))
	service := reservations.NewService(
		reservationRepo,
		activityRepo,
		registry,
		ledger,
		outboxStore,
		refundQueue,
		reservationMetrics,
		logger.Component("reservations"),
	)
	driver.bind(service)

	// Compensation workers
	refundClient := payments.NewRefundClient(cfg.GatewayBaseURL, os.Getenv("GATEWAY_SECRET_KEY"), cfg.RefundClientTimeout, logger.Component("gateway"))
	for i := 0; i < cfg.RefundWorkerCount; i++ {
		go compensation.NewWorker(refundQueue, refundClient, logger.Component("compensation")).Start(ctx)
	}

	// Outbox deliverer
	deliverer := events.NewDeliverer(outboxStore, events.LogHandler(logger.Component("outbox")), logger.Component("outbox")).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	// HTTP surface
	webhookHandler := payments.NewWebhookHandler(cfg.GatewayWebhookSecret, ledger, processedStore, webhookMetrics, logger.Component("webhooks"))
	reservationsHandler := reservations.NewHandler(service, logger.Component("reservations"))
	activitiesHandler := activities.NewHandler(activityRepo, registry, logger.Component("activities"))

	var corsOrigins []string
	if cfg.CORSAllowedOrigins != "" {
		corsOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	}

	r := router.New(&router.Config{
		Logger:              logger,
		ReservationsHandler: reservationsHandler,
		ActivitiesHandler:   activitiesHandler.Routes(),
		GatewayWebhook:      webhookHandler,
		OrgChecker:          orgRepo,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  corsOrigins,
		WebhookTimeout:      cfg.WebhookTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
