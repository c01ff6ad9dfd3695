// Command asistencia-report prints the dashboard KPIs or writes any of its
// reports to CSV, reading from the configured backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"asistencia/internal/backend"
	"asistencia/internal/cli"
	"asistencia/internal/config"
	"asistencia/internal/core"
	applog "asistencia/internal/log"
)

func main() {
	cli.LoadEnvFile()
	root := newRootCmd(loadFromBackend)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadFromBackend reads the table once through the backend chosen by the
// environment, with flag overrides applied.
func loadFromBackend(ctx context.Context, o *options) (core.Dataset, error) {
	cfg := config.Load()
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return core.Dataset{}, err
	}

	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Component: applog.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	})

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return core.Dataset{}, err
	}
	b, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("create backend: %w", err)
	}
	defer b.Close()

	t, err := b.Reader.ReadTable(ctx)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("read %s: %w", b.Source, err)
	}
	ds := core.NewDataset(t, b.Source, time.Now())
	logger.DebugContext(ctx, "Dataset loaded",
		applog.FieldSource, b.Source,
		applog.FieldRecords, len(ds.Records))
	return ds, nil
}
