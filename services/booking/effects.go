package booking

import (
	"context"
	"time"

	"fieldhand/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lifecycleEventVersion = 1

// afterApply runs best-effort side effects of a persisted transition and
// returns the booking as it now stands. Failures are logged and never undo
// the transition.
func (e *Engine) afterApply(ctx context.Context, prev, next *models.Booking, trigger Trigger, actor models.Actor) *models.Booking {
	log := e.logger.With(zap.String("bookingID", next.ID), zap.String("trigger", string(trigger)))

	if err := e.publisher.Publish(ctx, lifecycleEvent(prev, next, trigger, actor)); err != nil {
		log.Warn("Lifecycle event publish failed", zap.Error(err))
	}

	for _, n := range notificationsFor(next, trigger) {
		if err := e.notifier.Notify(ctx, n); err != nil {
			log.Warn("Push notification failed", zap.String("recipient", n.Recipient.String()), zap.Error(err))
		}
	}

	if prev != nil && !IsTerminal(prev.Status) && IsTerminal(next.Status) && next.HasProvider() {
		if err := e.providers.Release(ctx, *next.ProviderID, next.ID); err != nil {
			log.Warn("Provider release failed", zap.String("providerID", *next.ProviderID), zap.Error(err))
		}
	}

	if trigger == TriggerRate && next.HasProvider() {
		if err := e.providers.RecordRating(ctx, *next.ProviderID, next.Rating); err != nil {
			log.Warn("Provider rating update failed", zap.String("providerID", *next.ProviderID), zap.Error(err))
		}
	}

	if prev != nil && prev.Status == models.StatusPending && next.Status == models.StatusCancelled &&
		next.InitialPayment.Status != models.PaymentPaid && next.InitialPayment.OrderRef != "" {
		e.cancelOrder(ctx, log, next.InitialPayment.OrderRef)
	}

	if next.RefundStatus == models.RefundRequested && (prev == nil || prev.RefundStatus != models.RefundRequested) {
		if err := e.refunds.EnqueueRefund(ctx, next.ID); err != nil {
			log.Error("Refund enqueue failed", zap.Error(err))
			return e.failUnqueuedRefund(ctx, log, next, err)
		}
	}
	return next
}

// cancelOrder stops the gateway from capturing an abandoned order. A payment
// that still slips through is picked up as a late capture.
func (e *Engine) cancelOrder(ctx context.Context, log *zap.Logger, orderRef string) {
	ctx, span := e.tracer.Start(ctx, "payment.CancelOrder")
	defer span.End()

	if err := e.gateway.CancelOrder(ctx, orderRef); err != nil {
		recordSpanError(span, err)
		log.Warn("Gateway order cancel failed", zap.String("orderRef", orderRef), zap.Error(err))
	}
}

// failUnqueuedRefund marks a refund that never reached the queue as failed so
// an operator can request it again. If that write fails too, the stale-refund
// sweep re-queues it.
func (e *Engine) failUnqueuedRefund(ctx context.Context, log *zap.Logger, b *models.Booking, cause error) *models.Booking {
	ctx = context.WithoutCancel(ctx)
	version := b.Version
	failed, err := e.Apply(ctx, b.ID, TriggerRefundFailed, models.SystemActor(), Payload{
		ExpectedVersion: &version,
		RefundError:     "enqueue refund: " + cause.Error(),
	})
	if err != nil {
		log.Error("Recording unqueued refund as failed failed", zap.Error(err))
		return b
	}
	return failed
}

func lifecycleEvent(prev, next *models.Booking, trigger Trigger, actor models.Actor) models.LifecycleEvent {
	ev := models.LifecycleEvent{
		Event:      "booking." + string(trigger),
		Version:    lifecycleEventVersion,
		OccurredAt: next.UpdatedAt.UTC().Format(time.RFC3339Nano),
		BookingID:  next.ID,
		CustomerID: next.CustomerID,
		To:         next.Status,
		Actor:      actor.String(),
		Revision:   next.Version,
	}
	if prev != nil {
		ev.From = prev.Status
	}
	if next.HasProvider() {
		ev.ProviderID = *next.ProviderID
	}
	return ev
}

func notificationsFor(b *models.Booking, trigger Trigger) []models.Notification {
	customer := models.CustomerActor(b.CustomerID)
	var provider models.Actor
	if b.HasProvider() {
		provider = models.ProviderActor(*b.ProviderID)
	}

	var out []models.Notification
	add := func(to models.Actor, title, body string) {
		if to.ID == "" {
			return
		}
		out = append(out, models.Notification{
			ID:        uuid.NewString(),
			Recipient: to,
			Type:      string(trigger),
			Title:     title,
			Body:      body,
			Data: map[string]string{
				"bookingId": b.ID,
				"status":    string(b.Status),
			},
			CreatedAt: b.UpdatedAt,
		})
	}

	switch trigger {
	case TriggerInitialPaymentVerified:
		add(customer, "Booking confirmed", "Your payment was received. We are finding a provider.")
	case TriggerPaymentWindowElapsed:
		add(customer, "Booking cancelled", "The payment window for your booking has closed.")
	case TriggerCustomerCancel:
		add(provider, "Booking cancelled", "The customer cancelled this booking.")
	case TriggerProviderAssigned:
		add(customer, "Provider assigned", "A provider has accepted your booking.")
		add(provider, "New booking", "You have been assigned a booking.")
	case TriggerProviderStart:
		add(customer, "Service started", "Your provider has started the service.")
	case TriggerCompletionPaymentRequested:
		amount := ""
		if b.FinalAmount != nil {
			amount = FormatMinorUnits(*b.FinalAmount)
		}
		add(customer, "Payment requested", "Your provider requested "+amount+" "+b.Currency+" to complete the service.")
	case TriggerFinalPaymentVerified:
		add(customer, "Service completed", "Thanks for your payment. Please rate your provider.")
		add(provider, "Payment received", "The customer paid the final amount.")
	case TriggerRefundApproved:
		add(customer, "Refund completed", "Your refund of "+FormatMinorUnits(b.RefundAmount)+" "+b.Currency+" was issued.")
	case TriggerRefundFailed:
		add(customer, "Refund delayed", "We could not process your refund yet. Our team will follow up.")
	case TriggerLatePaymentCaptured:
		add(customer, "Payment received after cancellation", "Your booking was already cancelled, so this payment of "+FormatMinorUnits(b.InitialAmount)+" "+b.Currency+" will be refunded.")
	}
	return out
}
