// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/app"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/infrastructure/database/postgres"
	"github.com/your-org/marketplace-api/internal/infrastructure/database/redis"
	httpserver "github.com/your-org/marketplace-api/internal/interfaces/http"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logger.New(cfg.Logging)
	log.WithFields(logrus.Fields{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server exited with error")
	}
	log.Info("Server shutdown completed")
}

func run(cfg *config.Config, log *logrus.Logger) error {
	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := prepareDatabase(cfg, log, db); err != nil {
		return err
	}

	checks := map[string]httpserver.HealthChecker{"database": db}

	// Redis is optional
	var cache *redis.Client
	if cache, err = redis.NewConnection(cfg, log); err != nil {
		log.WithError(err).Warn("Redis unavailable; stats caching disabled and rate limiting is per process")
		cache = nil
	} else {
		defer cache.Close()
		checks["redis"] = cache
	}

	opts := app.Options{
		Config: cfg,
		Logger: log,
		DB:     db.GetDB(),
		Checks: checks,
	}
	if cache != nil {
		opts.Redis = cache.GetClient()
	}

	application, err := app.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// not tied to the signal context so Shutdown can drain the queue
	application.Dispatcher.Start(context.Background())

	group, gctx := errgroup.WithContext(ctx)
	group.Go(application.Server.Start)
	group.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// stop taking requests first so no new notifications are queued
		serverErr := application.Server.Stop(shutdownCtx)
		if err := application.Dispatcher.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Notification dispatcher did not drain")
		}
		return serverErr
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func prepareDatabase(cfg *config.Config, log *logrus.Logger, db *postgres.DB) error {
	migration := postgres.NewMigration(db.GetDB(), log)

	if cfg.Database.AutoMigrate {
		if err := migration.RunAutoMigrations(); err != nil {
			return err
		}
		if err := migration.CreateIndexes(); err != nil {
			log.WithError(err).Warn("Index creation failed")
		}
	}

	if cfg.Database.Seed {
		data, err := postgres.LoadSeed(cfg.Database.SeedFile)
		if err != nil {
			return err
		}
		if err := migration.Seed(data, auth.NewPasswordManager(cfg)); err != nil {
			return err
		}
	}

	counts, err := migration.TableCounts()
	if err != nil {
		log.WithError(err).Warn("Could not read table counts")
		return nil
	}
	fields := logrus.Fields{}
	for table, n := range counts {
		fields[table] = n
	}
	log.WithFields(fields).Info("Database ready")
	return nil
}
