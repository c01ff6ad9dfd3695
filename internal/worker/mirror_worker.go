package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"asistencia/internal/amqp"
	"asistencia/internal/core"
	applog "asistencia/internal/log"
	"asistencia/internal/sheets"
)

// Mirror is the local copy the worker keeps in sync with the sheet.
type Mirror interface {
	sheets.TableWriter
	RecordFailure(ctx context.Context, source string, started time.Time, cause error) error
}

// MirrorWorker copies the attendance sheet into the local mirror.
type MirrorWorker struct {
	reader sheets.TableReader
	mirror Mirror
	source string
	logger *applog.Logger
	now    func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
	runs        int
	failures    int
}

func NewMirrorWorker(reader sheets.TableReader, mirror Mirror, source string, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		reader: reader,
		mirror: mirror,
		source: source,
		logger: logger.WithComponent(applog.ComponentWorker),
		now:    time.Now,
	}
}

// MirrorOnce reads the whole sheet and replaces the mirror with it. A
// failed read leaves the previous mirror in place and is recorded as a
// failed run.
func (w *MirrorWorker) MirrorOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	w.runs++

	t, err := w.reader.ReadTable(ctx)
	if err == nil && len(t.Header) == 0 {
		err = core.ErrEmptyTable
	}
	if err != nil {
		w.failures++
		if rerr := w.mirror.RecordFailure(ctx, w.source, started, err); rerr != nil {
			w.logger.ErrorContext(ctx, "Failed to record mirror failure", applog.FieldError, rerr)
		}
		return 0, fmt.Errorf("read sheet: %w", err)
	}

	if err := w.mirror.ReplaceTable(ctx, w.source, t); err != nil {
		w.failures++
		return 0, fmt.Errorf("replace mirror: %w", err)
	}
	w.lastSuccess = started

	w.logger.InfoContext(ctx, "Sheet mirrored",
		applog.FieldOperation, applog.OpMirror,
		applog.FieldSource, w.source,
		applog.FieldRecords, len(t.Rows),
		applog.FieldDuration, w.now().Sub(started).Milliseconds())
	return len(t.Rows), nil
}

// HandleMirrorRequest serves one queued request. Requests made before the
// last successful mirror are already satisfied and are skipped.
func (w *MirrorWorker) HandleMirrorRequest(ctx context.Context, msg *amqp.MirrorRequest) error {
	if last := w.LastSuccess(); !last.IsZero() && msg.Timestamp.Before(last) {
		w.logger.DebugContext(ctx, "Skipping mirror request already served",
			"reason", msg.Reason,
			applog.FieldRequestID, msg.RequestID,
			"requested_at", msg.Timestamp,
			"last_success", last)
		return nil
	}
	_, err := w.MirrorOnce(ctx)
	return err
}

// Run mirrors at startup and then every interval until ctx ends.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.MirrorOnce(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup mirror failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.MirrorOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic mirror failed", applog.FieldError, err)
			}
		}
	}
}

// LastSuccess is the start time of the last successful mirror.
func (w *MirrorWorker) LastSuccess() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSuccess
}

// Counts returns the number of runs and failed runs so far.
func (w *MirrorWorker) Counts() (runs, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures
}
