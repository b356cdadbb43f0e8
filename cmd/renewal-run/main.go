package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/classbridge/billing-renewals/internal/billing"
	"github.com/classbridge/billing-renewals/internal/cron"
	"github.com/classbridge/billing-renewals/internal/notify"
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

const serviceName = "renewal-run"

// renewal-run performs a single renewal pass and exits 0 when the run
// completed, even if individual subscriptions failed.
func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return 1
	}
	if err := cfg.ValidateRenewal(); err != nil {
		logg.Error(ctx, "invalid renewal config", err)
		return 1
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return 1
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return 1
	}

	var lock renewal.Lock
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			return 1
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("renewal"), cfg.Renewal.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create renewal lock", err)
			return 1
		}
		lock = redisLock
	} else {
		logg.Warn(ctx, "redis not configured, running without a run lock")
	}

	gateway, err := payments.NewGateway(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap payment gateway", err)
		return 1
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap notifier", err)
		return 1
	}
	defer closeNotifier()

	coordinator, err := renewal.NewCoordinator(renewal.CoordinatorParams{
		Store:    billing.NewRepository(dbClient.DB()),
		Gateway:  gateway,
		Logger:   logg,
		Settings: renewal.SettingsFromConfig(cfg.Renewal),
		Lock:     lock,
		Notifier: notifier,
		Metrics:  metrics.NewRenewalMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(ctx, "failed to create renewal coordinator", err)
		return 1
	}

	report, err := coordinator.Run(ctx)
	if err != nil {
		logg.Error(ctx, "renewal run failed", err)
		return 1
	}
	if report.LockNotAcquired {
		logg.Info(ctx, "another renewal run holds the lock")
	}
	return 0
}

func buildNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger) (renewal.Notifier, func(), error) {
	if !cfg.Notify.PubSubEnabled() {
		n, err := notify.FromConfig(cfg.Notify, logg, nil)
		return n, func() {}, err
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, logg)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}
	n, err := notify.FromConfig(cfg.Notify, logg, client.Publisher(cfg.Notify.PubSubTopic))
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return n, closeFn, nil
}
