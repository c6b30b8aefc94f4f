package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/orgdeck/orgdeck/pkg/api"
	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/config"
	"github.com/orgdeck/orgdeck/pkg/observability"
	"github.com/orgdeck/orgdeck/pkg/orgs"
	"github.com/orgdeck/orgdeck/pkg/rbac"
	"github.com/orgdeck/orgdeck/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations := append(append(auth.Migrations(), orgs.Migrations()...), rbac.Migrations()...)
	if err := storage.RunMigrations(ctx, db, migrations); err != nil {
		return err
	}

	redisClient, err := storage.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	server := api.NewServer(cfg, db, redisClient, logger, metrics)

	// Background cleanup of expired invitations and tokens
	scheduler := cron.New()
	tokens := auth.NewTokenStore(db)
	orgService := orgs.NewPostgresService(db)

	if _, err := scheduler.AddFunc(cfg.Jobs.InvitationCleanupSchedule, func() {
		n, err := orgService.CleanupExpiredInvitations(context.Background())
		if err != nil {
			logger.WithError(err).Error("invitation cleanup failed")
			return
		}
		logger.WithField("removed", n).Info("invitation cleanup completed")
	}); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc(cfg.Jobs.TokenCleanupSchedule, func() {
		n, err := tokens.CleanupExpiredTokens(context.Background())
		if err != nil {
			logger.WithError(err).Error("token cleanup failed")
			return
		}
		logger.WithField("removed", n).Info("token cleanup completed")
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Health and metrics on a separate port for probes
	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthSrv.Addr).Info("health server listening")
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		healthSrv.Shutdown(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
