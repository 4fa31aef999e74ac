package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

const sweeperLockKey = "sweeper:expiry"

type SweeperConfig struct {
	Interval    time.Duration
	GraceWindow time.Duration
	BatchSize   int
}

// Sweeper cancels bookings left unpaid past the grace window and frees
// their vehicles.
type Sweeper struct {
	svc *Service
	cfg SweeperConfig
	log *zap.Logger
}

func NewSweeper(svc *Service, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{svc: svc, cfg: cfg, log: svc.log.Named("sweeper")}
}

// Run sweeps every Interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("expiry sweeper started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("grace_window", w.cfg.GraceWindow),
	)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce expires every Pending booking created before now minus the
// grace window and returns how many it cancelled. Only one instance sweeps
// at a time; the others return 0.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	release, err := w.svc.locker.Acquire(ctx, sweeperLockKey, w.cfg.Interval)
	if errors.Is(err, ErrLocked) {
		sweeperRuns.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	if err != nil {
		sweeperRuns.WithLabelValues("error").Inc()
		return 0, err
	}
	defer release()

	cutoff := w.svc.clock.Now().Add(-w.cfg.GraceWindow)
	stale, err := w.svc.store.ListExpiredPending(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		sweeperRuns.WithLabelValues("error").Inc()
		return 0, err
	}

	expired := 0
	for i := range stale {
		ok, err := w.expire(ctx, stale[i].ID, cutoff)
		if err != nil {
			w.log.Warn("expire booking", zap.Uint("booking_id", stale[i].ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	sweeperRuns.WithLabelValues("ok").Inc()
	if expired > 0 {
		w.log.Info("expired unpaid bookings", zap.Int("count", expired))
	}
	return expired, nil
}

// expire cancels one booking if it is still Pending and old enough once the
// booking lock is held. Bookings busy with another writer are left for the
// next run.
func (w *Sweeper) expire(ctx context.Context, id uint, cutoff time.Time) (bool, error) {
	var done bool
	err := w.svc.withBookingLock(ctx, id, func() error {
		b, err := w.svc.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.BookingStatusPending || !b.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := transition(b, models.BookingStatusCancelled); err != nil {
			return err
		}
		if err := w.svc.store.UpdateBooking(ctx, b); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				return nil
			}
			return err
		}

		done = true
		bookingsCancelled.WithLabelValues("expired").Inc()
		w.svc.releaseVehicle(ctx, b.VehicleID)
		w.svc.notify(ctx, b.UserID, TemplateBookingExpired, bookingNoticeData(b, RefundResult{Outcome: RefundOutcomeNotNeeded}))
		w.svc.publish(ctx, EventExpired, b, 0)
		return nil
	})
	if KindOf(err) == KindConflict {
		return false, nil
	}
	return done, err
}
