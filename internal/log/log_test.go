package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentSnapshot)

	l.Info("loaded", FieldRecords, 3)
	l.WithComponent(ComponentHTTP).WarnContext(context.Background(), "slow")

	out := buf.String()
	for _, want := range []string{"component=snapshot", "records=3", "component=http", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentReport)

	ctx := context.WithValue(context.Background(), LoggerContextKey, l)
	if got := FromContext(ctx); got != l {
		t.Fatalf("logger from context = %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("fallback logger should have component unknown")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))

	sl.LogSnapshotLoaded(context.Background(), "sheets", 0, 0, 0, true, 12)
	sl.LogError(context.Background(), "load failed", errors.New("quota"), ComponentSheets, OpRead, NewFields())

	out := buf.String()
	for _, want := range []string{"Snapshot loaded in degraded mode", "degraded=true", "error=quota", "operation=read"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
