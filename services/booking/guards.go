package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	categoryRepo "fieldhand/database/repository/category"
	"fieldhand/models"
	"fieldhand/services/payment"
)

// guardAndMutate checks the trigger-specific guard and applies its field
// changes to next. Status and UpdatedAt are set by the caller.
func (e *Engine) guardAndMutate(ctx context.Context, cur, next *models.Booking, trigger Trigger, actor models.Actor, p Payload, now time.Time) (string, error) {
	switch trigger {
	case TriggerInitialPaymentVerified:
		return e.verifyInitial(ctx, cur, next, actor, p, now)
	case TriggerPaymentWindowElapsed:
		return expire(cur, next, actor, now, e.settings.PaymentWindow)
	case TriggerCustomerCancel:
		return customerCancel(cur, next, actor, p)
	case TriggerProviderAssigned:
		return assignProvider(cur, next, actor, p)
	case TriggerProviderStart:
		if actor.Kind != models.ActorProvider || !cur.AssignedTo(actor.ID) {
			return "", invalid(trigger, cur.Status, "only the assigned provider can start the service")
		}
		return "", nil
	case TriggerCompletionPaymentRequested:
		return e.requestCompletion(ctx, cur, next, actor, p, now)
	case TriggerFinalPaymentVerified:
		return e.verifyFinal(ctx, cur, next, actor, p, now)
	case TriggerRefundApproved:
		return approveRefund(cur, next, actor, p)
	case TriggerRate:
		return rate(cur, next, actor, p)
	case TriggerRefundRequested:
		return requestRefund(cur, next, actor, p)
	case TriggerRefundProcessing:
		if !actor.IsSystem() || cur.RefundStatus != models.RefundRequested {
			return "", invalid(trigger, cur.Status, "refund is not awaiting processing")
		}
		next.RefundStatus = models.RefundProcessing
		return "", nil
	case TriggerRefundFailed:
		if !actor.IsSystem() || (cur.RefundStatus != models.RefundProcessing && cur.RefundStatus != models.RefundRequested) {
			return "", invalid(trigger, cur.Status, "refund is not in flight")
		}
		next.RefundStatus = models.RefundFailed
		next.RefundError = p.RefundError
		return p.RefundError, nil
	case TriggerLatePaymentCaptured:
		return e.recordLateCapture(ctx, cur, next, actor, p, now)
	}
	return "", invalid(trigger, cur.Status, "unsupported trigger")
}

func (e *Engine) verifyInitial(ctx context.Context, cur, next *models.Booking, actor models.Actor, p Payload, now time.Time) (string, error) {
	const trigger = TriggerInitialPaymentVerified
	if !actor.IsCustomer(cur.CustomerID) && !actor.IsSystem() {
		return "", invalid(trigger, cur.Status, "only the booking's customer can pay for it")
	}
	if cur.InitialPayment.Status == models.PaymentPaid {
		return "", invalid(trigger, cur.Status, "initial payment already verified")
	}
	if e.windowElapsed(cur, now) {
		return "", invalid(trigger, cur.Status, "payment window has elapsed")
	}
	v, err := e.verify(ctx, cur, cur.InitialPayment.OrderRef, p.Callback)
	if err != nil {
		return "", err
	}
	if v.Amount != cur.InitialAmount {
		return "", NewValidationError("amount", fmt.Sprintf("paid %d does not match initial amount %d", v.Amount, cur.InitialAmount))
	}
	paidAt := now
	next.InitialPayment.PaymentID = v.PaymentID
	next.InitialPayment.Status = models.PaymentPaid
	next.InitialPayment.PaidAt = &paidAt
	return v.PaymentID, nil
}

func (e *Engine) verifyFinal(ctx context.Context, cur, next *models.Booking, actor models.Actor, p Payload, now time.Time) (string, error) {
	const trigger = TriggerFinalPaymentVerified
	if !actor.IsCustomer(cur.CustomerID) && !actor.IsSystem() {
		return "", invalid(trigger, cur.Status, "only the booking's customer can pay for it")
	}
	if cur.FinalAmount == nil || cur.FinalPayment.Status != models.PaymentPending {
		return "", invalid(trigger, cur.Status, "completion payment has not been requested")
	}
	v, err := e.verify(ctx, cur, cur.FinalPayment.OrderRef, p.Callback)
	if err != nil {
		return "", err
	}
	if v.Amount != *cur.FinalAmount {
		return "", NewValidationError("amount", fmt.Sprintf("paid %d does not match final amount %d", v.Amount, *cur.FinalAmount))
	}
	paidAt := now
	next.FinalPayment.PaymentID = v.PaymentID
	next.FinalPayment.Status = models.PaymentPaid
	next.FinalPayment.PaidAt = &paidAt
	return v.PaymentID, nil
}

// verify checks the callback belongs to orderRef and asks the gateway to
// authenticate it. A timeout leaves the booking untouched.
func (e *Engine) verify(ctx context.Context, cur *models.Booking, orderRef string, cb *models.PaymentCallback) (*models.Verification, error) {
	if cb == nil || cb.OrderRef == "" || cb.PaymentID == "" {
		return nil, NewValidationError("payment", "orderRef and paymentId are required")
	}
	if cb.OrderRef != orderRef {
		return nil, NewValidationError("orderRef", "payment does not belong to this booking")
	}

	ctx, span := e.tracer.Start(ctx, "payment.Verify")
	defer span.End()

	v, err := e.gateway.Verify(ctx, *cb)
	if err != nil {
		recordSpanError(span, err)
		if errors.Is(err, payment.ErrInvalidSignature) {
			return nil, NewValidationError("signature", "payment signature is invalid")
		}
		return nil, gatewayError("verify", err)
	}
	if v.BookingID != "" && v.BookingID != cur.ID {
		return nil, NewValidationError("orderRef", "payment does not belong to this booking")
	}
	return v, nil
}

// recordLateCapture books an initial payment the gateway captured after the
// booking was cancelled. The order amount is fixed at creation, so the whole
// initial fee is refunded.
func (e *Engine) recordLateCapture(ctx context.Context, cur, next *models.Booking, actor models.Actor, p Payload, now time.Time) (string, error) {
	const trigger = TriggerLatePaymentCaptured
	if !actor.IsSystem() {
		return "", invalid(trigger, cur.Status, "only the system can record a late payment")
	}
	if cur.InitialPayment.Status == models.PaymentPaid {
		return "", invalid(trigger, cur.Status, "initial payment already recorded")
	}
	v, err := e.verify(ctx, cur, cur.InitialPayment.OrderRef, p.Callback)
	if err != nil {
		return "", err
	}
	paidAt := now
	next.InitialPayment.PaymentID = v.PaymentID
	next.InitialPayment.Status = models.PaymentPaid
	next.InitialPayment.PaidAt = &paidAt
	if cur.RefundStatus == models.RefundNone || cur.RefundStatus == models.RefundFailed {
		next.RefundStatus = models.RefundRequested
		next.RefundAmount = cur.InitialAmount
		next.RefundError = ""
	}
	return v.PaymentID, nil
}

func expire(cur, next *models.Booking, actor models.Actor, now time.Time, window time.Duration) (string, error) {
	const trigger = TriggerPaymentWindowElapsed
	if !actor.IsSystem() {
		return "", invalid(trigger, cur.Status, "only the system can expire a booking")
	}
	if cur.InitialPayment.Status == models.PaymentPaid {
		return "", invalid(trigger, cur.Status, "initial payment already captured")
	}
	if now.Sub(cur.CreatedAt) <= window {
		return "", invalid(trigger, cur.Status, "payment window still open")
	}
	next.CancelReason = models.CancelReasonPaymentExpired
	next.CancelledBy = models.ActorSystem
	next.InitialPayment.Status = models.PaymentFailed
	return models.CancelReasonPaymentExpired, nil
}

func customerCancel(cur, next *models.Booking, actor models.Actor, p Payload) (string, error) {
	const trigger = TriggerCustomerCancel
	if !actor.IsCustomer(cur.CustomerID) {
		return "", invalid(trigger, cur.Status, "only the booking's customer can cancel it")
	}
	if cur.Status == models.StatusStarted && cur.FinalPayment.Status != models.PaymentNone {
		return "", invalid(trigger, cur.Status, "completion payment already requested")
	}
	next.CancelReason = p.Reason
	next.CancelledBy = models.ActorCustomer
	if cur.InitialPayment.Status == models.PaymentPaid {
		next.RefundStatus = models.RefundRequested
		next.RefundAmount = cur.InitialAmount
		next.RefundError = ""
	}
	return p.Reason, nil
}

func assignProvider(cur, next *models.Booking, actor models.Actor, p Payload) (string, error) {
	const trigger = TriggerProviderAssigned
	if p.ProviderID == "" {
		return "", NewValidationError("providerId", "is required")
	}
	if !actor.IsOperator() && !(actor.Kind == models.ActorProvider && actor.ID == p.ProviderID) {
		return "", invalid(trigger, cur.Status, "a provider can only assign themselves")
	}
	if cur.HasProvider() {
		return "", invalid(trigger, cur.Status, "provider already assigned")
	}
	providerID := p.ProviderID
	next.ProviderID = &providerID
	return providerID, nil
}

func (e *Engine) requestCompletion(ctx context.Context, cur, next *models.Booking, actor models.Actor, p Payload, now time.Time) (string, error) {
	const trigger = TriggerCompletionPaymentRequested
	if actor.Kind != models.ActorProvider || !cur.AssignedTo(actor.ID) {
		return "", invalid(trigger, cur.Status, "only the assigned provider can request payment")
	}
	if p.FinalAmount <= 0 {
		return "", NewValidationError("amount", "must be positive")
	}
	if cur.FinalPayment.Status == models.PaymentPaid {
		return "", invalid(trigger, cur.Status, "final payment already captured")
	}
	revision := cur.FinalAmount != nil
	if revision {
		first := cur.FinalPayment.RequestedAt
		if first == nil || now.Sub(*first) > e.settings.ProviderEditWindow {
			return "", invalid(trigger, cur.Status, "provider edit window has elapsed")
		}
	}

	category, err := e.categories.GetByID(ctx, cur.CategoryID)
	if errors.Is(err, categoryRepo.ErrNotFound) {
		return "", &NotFoundError{Resource: "category", ID: cur.CategoryID}
	}
	if err != nil {
		return "", err
	}
	if !category.AcceptsFinalAmount(p.FinalAmount) {
		if category.IsOther {
			return "", NewValidationError("amount", "must be positive")
		}
		return "", NewValidationError("amount", fmt.Sprintf("must be between %s and %s",
			FormatMinorUnits(category.MinPrice), FormatMinorUnits(category.MaxPrice)))
	}

	order, err := e.gateway.CreateOrder(ctx, models.OrderRequest{
		BookingID:      cur.ID,
		Kind:           models.PaymentKindFinal,
		Amount:         p.FinalAmount,
		Currency:       cur.Currency,
		IdempotencyKey: fmt.Sprintf("%s:final:%d", cur.ID, cur.Version),
	})
	if err != nil {
		return "", gatewayError("create order", err)
	}

	amount := p.FinalAmount
	next.FinalAmount = &amount
	next.FinalPayment.OrderRef = order.OrderRef
	next.FinalPayment.PaymentID = ""
	next.FinalPayment.Status = models.PaymentPending
	if !revision {
		requestedAt := now
		next.FinalPayment.RequestedAt = &requestedAt
	}
	return order.OrderRef, nil
}

func rate(cur, next *models.Booking, actor models.Actor, p Payload) (string, error) {
	const trigger = TriggerRate
	if !actor.IsCustomer(cur.CustomerID) {
		return "", invalid(trigger, cur.Status, "only the booking's customer can rate it")
	}
	if cur.IsRated {
		return "", invalid(trigger, cur.Status, "booking already rated")
	}
	if p.Rating < 1 || p.Rating > 5 {
		return "", NewValidationError("rating", "must be between 1 and 5")
	}
	next.IsRated = true
	next.Rating = p.Rating
	next.Feedback = p.Feedback
	return "", nil
}

// capturedAmount is what the customer has paid so far.
func capturedAmount(b *models.Booking) int64 {
	var total int64
	if b.InitialPayment.Status == models.PaymentPaid {
		total += b.InitialAmount
	}
	if b.FinalPayment.Status == models.PaymentPaid && b.FinalAmount != nil {
		total += *b.FinalAmount
	}
	return total
}

func requestRefund(cur, next *models.Booking, actor models.Actor, p Payload) (string, error) {
	const trigger = TriggerRefundRequested
	if !actor.IsOperator() {
		return "", invalid(trigger, cur.Status, "only an operator can request a refund")
	}
	if cur.RefundStatus != models.RefundNone && cur.RefundStatus != models.RefundFailed {
		return "", invalid(trigger, cur.Status, "refund already "+string(cur.RefundStatus))
	}
	captured := capturedAmount(cur)
	if captured == 0 {
		return "", invalid(trigger, cur.Status, "nothing was captured")
	}
	amount := captured
	if p.RefundAmount < 0 || p.RefundAmount > captured {
		return "", NewValidationError("amount", fmt.Sprintf("must be between 0 and %s", FormatMinorUnits(captured)))
	}
	if p.RefundAmount > 0 {
		amount = p.RefundAmount
	}
	next.RefundStatus = models.RefundRequested
	next.RefundAmount = amount
	next.RefundError = ""
	return p.Reason, nil
}

func approveRefund(cur, next *models.Booking, actor models.Actor, p Payload) (string, error) {
	const trigger = TriggerRefundApproved
	if !actor.IsOperator() {
		return "", invalid(trigger, cur.Status, "only an operator can approve a refund")
	}
	if cur.InitialPayment.Status != models.PaymentPaid {
		return "", invalid(trigger, cur.Status, "initial payment was never captured")
	}
	if cur.RefundStatus != models.RefundRequested && cur.RefundStatus != models.RefundProcessing {
		return "", invalid(trigger, cur.Status, "no refund in flight")
	}
	next.RefundStatus = models.RefundCompleted
	next.RefundID = p.RefundID
	next.RefundError = ""
	return p.RefundID, nil
}
