package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/openmaraude/apitaxi/api/routes"
	"github.com/openmaraude/apitaxi/internal/availability"
	"github.com/openmaraude/apitaxi/internal/customers"
	"github.com/openmaraude/apitaxi/internal/dispatch"
	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/internal/taxis"
	"github.com/openmaraude/apitaxi/internal/users"
	"github.com/openmaraude/apitaxi/internal/zones"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/migrate"
	"github.com/openmaraude/apitaxi/pkg/outbox"
	"github.com/openmaraude/apitaxi/pkg/pubsub"
	"github.com/openmaraude/apitaxi/pkg/redis"
	"github.com/openmaraude/apitaxi/pkg/taskqueue"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
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
	customersRepo := customers.NewRepository(dbClient.DB())
	dispatchRepo := dispatch.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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

	availabilityService, err := availability.NewService(availability.ServiceParams{
		Logger: logg,
		Geo:    geoStore,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	customersService, err := customers.NewService(customers.ServiceParams{
		Logger:          logg,
		Repo:            customersRepo,
		BanBaseDuration: cfg.Customers.BanBaseDuration,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create customers service", err)
		os.Exit(1)
	}

	taxisService, err := taxis.NewService(taxis.ServiceParams{
		Logger:       logg,
		Repo:         taxisRepo,
		Geo:          geoStore,
		Availability: availabilityService,
		Tx:           dbClient,
		Outbox:       outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create taxis service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatch.NewService(dispatch.ServiceParams{
		Logger:          logg,
		Geo:             geoStore,
		Registry:        dispatchRepo,
		Zones:           zonesService,
		FreshnessWindow: cfg.Geotaxi.FreshnessWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
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
		logg.Error(context.Background(), "failed to create hails service", err)
		os.Exit(1)
	}
	taxisService.SetHailUpdater(hailsService)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.NewRouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Users:    usersRepo,
			Taxis:    taxisService,
			Dispatch: dispatchService,
			Hails:    hailsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
