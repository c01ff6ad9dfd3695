package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func TestGracefulShutdownTimeout(t *testing.T) {
	logger := SetupLogger(slog.LevelError)
	parent, stop := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)
	_, done := GracefulShutdown(parent, logger, 20*time.Millisecond, func(context.Context) { <-release })
	stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not release done")
	}
}

func TestSetupLoggerSetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(slog.LevelWarn)
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if slog.Default() != logger.Logger {
		t.Error("SetupLogger did not replace the default logger")
	}
}

func TestInitSQLite(t *testing.T) {
	logger := SetupLogger(slog.LevelError)
	repo := InitSQLite(logger, filepath.Join(t.TempDir(), "mirror.db"))
	defer repo.Close()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestGracefulShutdownOnParentCancel(t *testing.T) {
	logger := SetupLogger(slog.LevelError)
	cleaned := make(chan struct{})
	parent, stop := context.WithCancel(context.Background())
	ctx, done := GracefulShutdown(parent, logger, time.Second, func(context.Context) { close(cleaned) })
	stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
	select {
	case <-cleaned:
	default:
		t.Error("cleanup not run")
	}
}
