package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openmaraude/apitaxi/internal/availability"
	"github.com/openmaraude/apitaxi/internal/customers"
	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/internal/taxis"
	"github.com/openmaraude/apitaxi/internal/users"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/instance"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/outbox"
	"github.com/openmaraude/apitaxi/pkg/pubsub"
	"github.com/openmaraude/apitaxi/pkg/redis"
	"github.com/openmaraude/apitaxi/pkg/taskqueue"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	geoStore := geostore.NewStore(geostore.NewStoreParams{
		Redis:  redisClient.Raw(),
		Logger: logg,
	})
	timeoutQueue := taskqueue.NewQueue(taskqueue.NewQueueParams{
		Redis:  redisClient.Raw(),
		Key:    cfg.TaskQueue.Key,
		Logger: logg,
	})

	usersRepo := users.NewRepository(dbClient.DB())
	taxisRepo := taxis.NewRepository(dbClient.DB())
	hailsRepo := hails.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	availabilityService, err := availability.NewService(availability.ServiceParams{
		Logger: logg,
		Geo:    geoStore,
	})
	if err != nil {
		logg.Error(ctx, "failed to create availability service", err)
		os.Exit(1)
	}

	customersService, err := customers.NewService(customers.ServiceParams{
		Logger:          logg,
		Repo:            customers.NewRepository(dbClient.DB()),
		BanBaseDuration: cfg.Customers.BanBaseDuration,
	})
	if err != nil {
		logg.Error(ctx, "failed to create customers service", err)
		os.Exit(1)
	}

	hailsService, err := hails.NewService(hails.ServiceParams{
		Logger:       logg,
		Repo:         hailsRepo,
		Taxis:        taxisRepo,
		Users:        usersRepo,
		Geo:          geoStore,
		Availability: availabilityService,
		Customers:    customersService,
		Scheduler:    timeoutQueue,
		Notifier:     hails.NewPubSubNotifier(pubsubClient.HailDeliveryPublisher()),
		Tx:           dbClient,
		Outbox:       outboxService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create hails service", err)
		os.Exit(1)
	}

	deliveryConsumer, err := hails.NewDeliveryConsumer(hailsService, pubsubClient.HailDeliverySubscription(), logg)
	if err != nil {
		logg.Error(ctx, "failed to create delivery consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               dbClient,
		Redis:            redisClient,
		PubSub:           pubsubClient,
		Queue:            timeoutQueue,
		DeliveryConsumer: deliveryConsumer,
		Hails:            hailsService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shut down gracefully")
}
