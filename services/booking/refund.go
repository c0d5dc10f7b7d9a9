package booking

import (
	"context"
	"fmt"
	"strings"

	"fieldhand/models"
	"fieldhand/services/payment"

	"go.uber.org/zap"
)

// RefundProcessor executes queued refunds against the gateway. A failed
// refund is recorded as failed and is not retried automatically.
type RefundProcessor struct {
	engine  *Engine
	gateway payment.Gateway
	logger  *zap.Logger
}

func NewRefundProcessor(engine *Engine, gateway payment.Gateway, logger *zap.Logger) *RefundProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundProcessor{engine: engine, gateway: gateway, logger: logger}
}

// Process refunds the requested amount for bookingID. A refund left in
// processing longer than RefundStaleAfter is resumed; leg idempotency keys
// keep the gateway from paying it twice. Anything else is skipped.
func (p *RefundProcessor) Process(ctx context.Context, bookingID string) error {
	b, err := p.engine.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	log := p.logger.With(zap.String("bookingID", bookingID))

	switch {
	case b.RefundStatus == models.RefundRequested:
		version := b.Version
		b, err = p.engine.Apply(ctx, bookingID, TriggerRefundProcessing, models.SystemActor(), Payload{ExpectedVersion: &version})
		if err != nil {
			return err
		}
	case b.RefundStatus == models.RefundProcessing && p.engine.Now().Sub(b.UpdatedAt) > p.engine.settings.RefundStaleAfter:
		log.Warn("Resuming stale refund", zap.Time("processingSince", b.UpdatedAt))
	default:
		log.Info("Refund not requested; skipping", zap.String("refundStatus", string(b.RefundStatus)))
		return nil
	}

	refundIDs, gwErr := p.refundLegs(ctx, b)
	if gwErr != nil {
		log.Error("Refund failed", zap.Int64("amount", b.RefundAmount), zap.Error(gwErr))
		if _, err := p.settle(ctx, bookingID, TriggerRefundFailed, Payload{RefundError: gwErr.Error()}); err != nil {
			log.Error("Recording refund failure failed; the stale-refund sweep will retry", zap.Error(err))
		}
		return gatewayError("refund", gwErr)
	}

	if _, err := p.settle(ctx, bookingID, TriggerRefundApproved, Payload{RefundID: strings.Join(refundIDs, ",")}); err != nil {
		log.Error("Recording refund completion failed; the stale-refund sweep will retry",
			zap.Strings("refundIDs", refundIDs),
			zap.Error(err))
		return err
	}
	log.Info("Refund completed",
		zap.Int64("amount", b.RefundAmount),
		zap.Strings("refundIDs", refundIDs))
	return nil
}

// settle records the gateway outcome, re-reading once if a concurrent
// bookkeeping write moved the version.
func (p *RefundProcessor) settle(ctx context.Context, bookingID string, trigger Trigger, payload Payload) (*models.Booking, error) {
	ctx = context.WithoutCancel(ctx)
	b, err := p.engine.Apply(ctx, bookingID, trigger, models.SystemActor(), payload)
	if IsConflict(err) {
		return p.engine.Apply(ctx, bookingID, trigger, models.SystemActor(), payload)
	}
	return b, err
}

type refundLeg struct {
	kind   models.PaymentKind
	leg    models.PaymentLeg
	amount int64
}

// refundLegs splits the refund across the captured orders, initial fee first.
// Keys do not depend on the attempt, so a re-requested refund never repeats a
// leg the gateway already paid out.
func (p *RefundProcessor) refundLegs(ctx context.Context, b *models.Booking) ([]string, error) {
	remaining := b.RefundAmount
	var ids []string

	legs := []refundLeg{{models.PaymentKindInitial, b.InitialPayment, b.InitialAmount}}
	if b.FinalAmount != nil {
		legs = append(legs, refundLeg{models.PaymentKindFinal, b.FinalPayment, *b.FinalAmount})
	}

	for _, l := range legs {
		if remaining <= 0 {
			break
		}
		if l.leg.Status != models.PaymentPaid {
			continue
		}
		amount := l.amount
		if remaining < amount {
			amount = remaining
		}
		res, err := p.gateway.Refund(ctx, models.RefundRequest{
			BookingID:      b.ID,
			OrderRef:       l.leg.OrderRef,
			PaymentID:      l.leg.PaymentID,
			Amount:         amount,
			Currency:       b.Currency,
			IdempotencyKey: fmt.Sprintf("refund:%s:%s:%d", b.ID, l.kind, amount),
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, res.RefundID)
		remaining -= amount
	}
	if remaining > 0 {
		return ids, fmt.Errorf("refund amount exceeds captured payments by %d", remaining)
	}
	return ids, nil
}
