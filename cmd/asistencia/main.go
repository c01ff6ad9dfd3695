package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"asistencia/internal/amqp"
	"asistencia/internal/backend"
	"asistencia/internal/cache"
	"asistencia/internal/cli"
	apphttp "asistencia/internal/http"
	applog "asistencia/internal/log"
	"asistencia/internal/middleware/ratelimit"
	"asistencia/internal/snapshot"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger(applog.DefaultConfig().Level)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.SlogLevel())

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			applog.FieldError, err,
			"error_type", applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize data backend",
			applog.FieldError, err,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	snap := snapshot.New(b.Reader, b.Source, cfg.CacheTTL, logger)
	caches := cache.NewManager(logger)
	caches.Register(snap.Cache())
	caches.StartCleanup(cfg.CacheTTL)

	opts := apphttp.Options{
		Addr:         ":" + cfg.Port,
		Snapshot:     snap,
		Logger:       logger,
		RefreshLimit: ratelimit.DefaultConfig(),
	}
	if p, ok := b.Reader.(backend.Pinger); ok {
		opts.ReadyCheck = p.Ping
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Refresh still invalidates the snapshot without a broker.
			logger.Warn("AMQP unavailable, refresh will not trigger a mirror run",
				applog.FieldError, err,
				"error_type", applog.ErrorTypeNetwork)
		} else {
			opts.Publisher = amqpClient
		}
	}

	srv := apphttp.NewServer(opts)

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting asistencia server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldSource, b.Source)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
