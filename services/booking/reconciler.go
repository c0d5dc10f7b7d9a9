package booking

import (
	"context"
	"errors"
	"time"

	bookingRepo "fieldhand/database/repository/booking"
	"fieldhand/models"

	"go.uber.org/zap"
)

// SweepResult counts the outcomes of one reconciliation pass.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Expired   int `json:"expired"`
	Conflicts int `json:"conflicts"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Assigned  int `json:"assigned"`
	Requeued  int `json:"requeuedRefunds"`
}

// Reconciler expires unpaid bookings whose payment window has elapsed,
// retries assignment for confirmed bookings without a provider and re-queues
// refunds stuck in requested or processing. It is safe
// to run from several instances; version checks let one sweep win per booking.
type Reconciler struct {
	engine   *Engine
	resolver *AssignmentResolver
	bookings bookingRepo.BookingRepository
	batch    int
	logger   *zap.Logger
}

func NewReconciler(engine *Engine, resolver *AssignmentResolver, bookings bookingRepo.BookingRepository, batch int, logger *zap.Logger) *Reconciler {
	if batch <= 0 {
		batch = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{engine: engine, resolver: resolver, bookings: bookings, batch: batch, logger: logger}
}

// Sweep runs one pass. Failures are logged and left for the next run.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := r.engine.Now().Add(-r.engine.settings.PaymentWindow)

	expired, err := r.bookings.ListExpiredPending(ctx, cutoff, r.batch)
	if err != nil {
		return res, err
	}
	for _, b := range expired {
		res.Scanned++
		version := b.Version
		_, err := r.engine.Apply(ctx, b.ID, TriggerPaymentWindowElapsed, models.SystemActor(), Payload{ExpectedVersion: &version})
		switch {
		case err == nil:
			res.Expired++
		case IsConflict(err):
			res.Conflicts++
			r.logger.Debug("Expiry lost race", zap.String("bookingID", b.ID))
		case IsInvalidTransition(err):
			res.Skipped++
			r.logger.Debug("Expiry no longer applies", zap.String("bookingID", b.ID), zap.Error(err))
		default:
			res.Failed++
			r.logger.Warn("Expiry failed", zap.String("bookingID", b.ID), zap.Error(err))
		}
	}

	if r.resolver != nil {
		unassigned, err := r.bookings.ListUnassignedConfirmed(ctx, r.batch)
		if err != nil {
			r.logger.Warn("Listing unassigned bookings failed", zap.Error(err))
		}
		for _, b := range unassigned {
			_, ok, err := r.resolver.TryAssign(ctx, b.ID)
			if ok {
				res.Assigned++
			}
			if err != nil && !errors.Is(err, ErrAlreadyAssigned) {
				r.logger.Warn("Assignment retry failed", zap.String("bookingID", b.ID), zap.Error(err))
			}
		}
	}

	stale, err := r.bookings.ListStaleRefunds(ctx, r.engine.Now().Add(-r.engine.settings.RefundStaleAfter), r.batch)
	if err != nil {
		r.logger.Warn("Listing stale refunds failed", zap.Error(err))
	}
	for _, b := range stale {
		if err := r.engine.refunds.EnqueueRefund(ctx, b.ID); err != nil {
			res.Failed++
			r.logger.Warn("Refund re-queue failed", zap.String("bookingID", b.ID), zap.Error(err))
			continue
		}
		res.Requeued++
		r.logger.Info("Stale refund re-queued",
			zap.String("bookingID", b.ID),
			zap.String("refundStatus", string(b.RefundStatus)),
			zap.Time("updatedAt", b.UpdatedAt))
	}

	if res.Scanned > 0 || res.Assigned > 0 || res.Requeued > 0 {
		r.logger.Info("Booking sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("conflicts", res.Conflicts),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Int("assigned", res.Assigned),
			zap.Int("requeuedRefunds", res.Requeued))
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled. Used when no task queue is configured.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Booking sweep failed", zap.Error(err))
			}
		}
	}
}
