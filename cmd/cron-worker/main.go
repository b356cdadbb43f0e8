package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/internal/cron"
	"github.com/classbridge/billing-renewals/internal/notify"
	"github.com/classbridge/billing-renewals/internal/ops"
	"github.com/classbridge/billing-renewals/internal/payments"
	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/config"
	"github.com/classbridge/billing-renewals/pkg/db"
	"github.com/classbridge/billing-renewals/pkg/logger"
	"github.com/classbridge/billing-renewals/pkg/metrics"
	"github.com/classbridge/billing-renewals/pkg/migrate"
	"github.com/classbridge/billing-renewals/pkg/pubsub"
	"github.com/classbridge/billing-renewals/pkg/redis"
)

const (
	serviceName     = "cron-worker"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if err := cfg.ValidateRenewal(); err != nil {
		logg.Error(context.Background(), "invalid renewal config", err)
		os.Exit(1)
	}
	if !cfg.Redis.Enabled() {
		logg.Error(context.Background(), "cron worker requires redis", errors.New("CLASSBRIDGE_REDIS_URL not set"))
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := payments.NewGateway(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	var publisherClient *pubsub.Client
	if cfg.Notify.PubSubEnabled() {
		publisherClient, err = pubsub.NewClient(context.Background(), cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := publisherClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}
	notifier, err := notify.FromConfig(cfg.Notify, logg, publisherClient.Publisher(cfg.Notify.PubSubTopic))
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap notifier", err)
		os.Exit(1)
	}

	// The cron service holds the run lock, so the coordinator runs without one.
	coordinator, err := renewal.NewCoordinator(renewal.CoordinatorParams{
		Store:    billing.NewRepository(dbClient.DB()),
		Gateway:  gateway,
		Logger:   logg,
		Settings: renewal.SettingsFromConfig(cfg.Renewal),
		Notifier: notifier,
		Metrics:  metrics.NewRenewalMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create renewal coordinator", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("renewal"), cfg.Renewal.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	renewalJob, err := cron.NewRenewalJob(cron.RenewalJobParams{Logger: logg, Runner: coordinator})
	if err != nil {
		logg.Error(context.Background(), "failed to create renewal job", err)
		os.Exit(1)
	}
	registry := cron.NewRegistry()
	if err := registry.Register(renewalJob); err != nil {
		logg.Error(context.Background(), "failed to register renewal job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Renewal.Schedule,
		// Refresh well inside the ttl so a long batch keeps the lease.
		LeaseRefresh: cfg.Renewal.LockTTL / 3,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"schedule": cfg.Renewal.Schedule,
	})

	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: ops.NewRouter(ops.RouterParams{
			Config:   cfg,
			Logger:   logg,
			Gatherer: prometheus.DefaultGatherer,
			Checks:   map[string]ops.Pinger{"db": dbClient, "redis": redisClient},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logg.Info(ctx, "ops server listening on :"+cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server failed", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting cron worker")
	runErr := service.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "ops server shutdown failed", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", runErr)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
