package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"asistencia/internal/amqp"
	"asistencia/internal/cli"
	applog "asistencia/internal/log"
	gsheet "asistencia/internal/sheets/google"
	"asistencia/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger(applog.DefaultConfig().Level)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.SlogLevel()).WithComponent(applog.ComponentWorker)

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid",
			applog.FieldError, err,
			"error_type", applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	logger.Info("Starting asistencia-worker",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName,
		"interval", cfg.MirrorInterval.String())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheet, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: []byte(cfg.GoogleServiceAccountJSON),
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client",
			applog.FieldError, err,
			"error_type", applog.ErrorTypeAuth)
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(sheet, repo, "sheets:"+cfg.GoogleSpreadsheetID, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				applog.FieldError, err,
				"error_type", applog.ErrorTypeNetwork)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled, mirroring on schedule only")
	}

	root, stop := context.WithCancel(context.Background())
	defer stop()
	ctx, done := cli.GracefulShutdown(root, logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirror.Run(gctx, cfg.MirrorInterval)
	})
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeMirrorRequests(gctx, mirror.HandleMirrorRequest)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}
	runs, failures := mirror.Counts()
	logger.Info("Worker stopped", "runs", runs, "failures", failures)
	stop()
	<-done
}
