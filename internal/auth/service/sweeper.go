package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"medivault/internal/audit"
	"medivault/internal/auth/store/session"
)

// Sweeper removes expired sessions on a timer. It is housekeeping with an
// explicit lifecycle, not a correctness mechanism: Verify enforces expiry
// regardless of sweep timing.
type Sweeper struct {
	sessions session.Store
	recorder *audit.Recorder
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(sessions session.Store, recorder *audit.Recorder, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		sessions: sessions,
		recorder: recorder,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, sweeping on each tick, until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.sessions.SweepExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if removed == 0 {
		return
	}

	sessionsSwept.Add(float64(removed))
	s.recorder.Record(ctx, audit.LevelInfo, audit.EventSweepCompleted,
		audit.ActorContext{},
		audit.Public("removed", strconv.Itoa(removed)),
	)
}
