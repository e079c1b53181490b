package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openmaraude/apitaxi/internal/cron"
	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/internal/taxis"
	"github.com/openmaraude/apitaxi/internal/users"
	"github.com/openmaraude/apitaxi/internal/zones"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/metrics"
	"github.com/openmaraude/apitaxi/pkg/migrate"
	"github.com/openmaraude/apitaxi/pkg/outbox"
	"github.com/openmaraude/apitaxi/pkg/redis"
)

const lockKeyFormat = "apitaxi:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	geoStore := geostore.NewStore(geostore.NewStoreParams{
		Redis:  redisClient.Raw(),
		Logger: logg,
	})
	hailsRepo := hails.NewRepository(dbClient.DB())
	taxisRepo := taxis.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())

	zonesService, err := zones.NewService(zones.ServiceParams{
		Logger: logg,
		Repo:   zones.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create zones service", err)
		os.Exit(1)
	}
	if err := zonesService.Load(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load zone index", err)
		os.Exit(1)
	}

	geoindexCleanup, err := cron.NewGeoindexCleanupJob(cron.GeoindexCleanupJobParams{
		Logger: logg,
		Geo:    geoStore,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create geoindex cleanup job", err)
		os.Exit(1)
	}

	locationBlur, err := cron.NewLocationBlurJob(cron.BlurJobParams{
		Logger: logg,
		Reader: hailsRepo,
		Saver:  hailsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create location blur job", err)
		os.Exit(1)
	}

	geotaxiBlur, err := cron.NewGeotaxiBlurJob(cron.GeotaxiBlurJobParams{
		Logger: logg,
		Geo:    geoStore,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create geotaxi blur job", err)
		os.Exit(1)
	}

	hailBlur, err := cron.NewHailBlurJob(cron.BlurJobParams{
		Logger: logg,
		Reader: hailsRepo,
		Saver:  hailsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hail blur job", err)
		os.Exit(1)
	}

	hailArchive, err := cron.NewHailArchiveJob(cron.HailArchiveJobParams{
		Logger: logg,
		DB:     dbClient,
		Reader: hailsRepo,
		Store:  hailsRepo,
		Users:  usersRepo,
		Zones:  zonesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hail archive job", err)
		os.Exit(1)
	}

	orphanTaxis, err := cron.NewOrphanTaxisJob(cron.OrphanTaxisJobParams{
		Logger: logg,
		Taxis:  taxisRepo,
		Geo:    geoStore,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan taxis job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	// Location blur registers before hail blur: the hail blur marks
	// rows done, so coordinates must be coarsened first.
	registry := cron.NewRegistry(
		geoindexCleanup,
		cron.Every(cfg.Cron.LocationBlurInterval, locationBlur),
		cron.Every(cfg.Cron.GeotaxiBlurInterval, geotaxiBlur),
		cron.Every(cfg.Cron.HailBlurInterval, hailBlur),
		cron.Every(cfg.Cron.HailArchiveInterval, hailArchive),
		cron.Every(cfg.Cron.OrphanTaxisInterval, orphanTaxis),
		cron.Every(cfg.Cron.HailArchiveInterval, outboxRetention),
	)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.GeoindexCleanupInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
