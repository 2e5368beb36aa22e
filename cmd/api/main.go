package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokenforge/licensecore/api/routes"
	"github.com/tokenforge/licensecore/internal/authz"
	"github.com/tokenforge/licensecore/internal/inventory"
	"github.com/tokenforge/licensecore/internal/ownership"
	registrysvc "github.com/tokenforge/licensecore/internal/registry"
	"github.com/tokenforge/licensecore/internal/sales"
	"github.com/tokenforge/licensecore/pkg/config"
	"github.com/tokenforge/licensecore/pkg/db"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/metrics"
	"github.com/tokenforge/licensecore/pkg/migrate"
	"github.com/tokenforge/licensecore/pkg/outbox"
	"github.com/tokenforge/licensecore/pkg/payment"
	"github.com/tokenforge/licensecore/pkg/redis"
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

	ledgerClient, err := payment.NewClient(context.Background(), cfg.Payment, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment ledger client", err)
		os.Exit(1)
	}
	engineAccount := ledgerClient.EngineAccount()

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	registryService := registrysvc.NewService(
		registrysvc.NewRepository(dbClient.DB()),
		dbClient,
		ledgerClient,
		engineAccount,
		logg,
	)
	if _, err := registryService.EnsureInitialized(context.Background(), cfg.Registry.OwnerAccountID()); err != nil {
		logg.Error(context.Background(), "failed to seed registry state", err)
		os.Exit(1)
	}

	guard := authz.New(registryService)

	inventoryService := inventory.NewService(
		inventory.NewRepository(dbClient.DB()),
		dbClient,
		events,
		guard,
		logg,
	)

	ownershipService := ownership.NewService(
		ownership.NewRepository(dbClient.DB()),
		ownership.NewOperatorRepository(dbClient.DB()),
		registryService,
		dbClient,
		events,
		ownership.NewHTTPReceiverProber(logg),
		logg,
	)

	salesService := sales.NewService(
		inventoryService,
		ownershipService,
		ledgerClient,
		registryService,
		guard,
		dbClient,
		engineAccount,
		metrics.NewSaleMetrics(prometheus.DefaultRegisterer),
		logg,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			redisClient,
			inventoryService,
			ownershipService,
			salesService,
			registryService,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
