package audit

import (
	"context"
	"log/slog"
	"time"
)

// Worker periodically flushes the recorder's fallback buffer back into the
// sink once it recovers. It has an explicit lifecycle: Run blocks until the
// context is canceled.
type Worker struct {
	recorder  *Recorder
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWorker(recorder *Recorder, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		recorder:  recorder,
		interval:  interval,
		batchSize: 256,
		logger:    logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.recorder.Buffered() == 0 {
				continue
			}
			flushed := w.recorder.DrainBuffer(ctx, w.batchSize)
			if flushed > 0 {
				w.logger.Info("flushed buffered audit events",
					"flushed", flushed, "remaining", w.recorder.Buffered())
			}
		}
	}
}
