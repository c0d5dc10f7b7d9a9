package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingRepo "fieldhand/database/repository/booking"
	"fieldhand/models"
	"fieldhand/services/payment"

	"go.uber.org/zap"
)

// CreateBookingInput is the request shape of create-booking. Amounts are major units.
type CreateBookingInput struct {
	CategoryID    string    `json:"categoryId" binding:"required"`
	ScheduledAt   time.Time `json:"scheduledAt" binding:"required"`
	InitialAmount float64   `json:"initialAmount" binding:"required"`
}

type CreateBookingResult struct {
	BookingID       string          `json:"bookingId"`
	PaymentOrderRef string          `json:"paymentOrderRef"`
	ClientSecret    string          `json:"clientSecret,omitempty"`
	Booking         *models.Booking `json:"booking"`
}

// BookingView is a booking plus its payment-window state for polling clients.
type BookingView struct {
	*models.Booking
	PaymentWindow *models.PaymentWindow `json:"paymentWindow,omitempty"`
}

// BookingService is the boundary used by HTTP handlers and the webhook.
type BookingService interface {
	CreateBooking(ctx context.Context, actor models.Actor, in CreateBookingInput) (*CreateBookingResult, error)
	VerifyInitialPayment(ctx context.Context, actor models.Actor, bookingID string, cb models.PaymentCallback) (*BookingView, error)
	CancelBooking(ctx context.Context, actor models.Actor, bookingID, reason string) (*BookingView, error)
	AcceptBooking(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error)
	StartService(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error)
	RequestCompletionPayment(ctx context.Context, actor models.Actor, bookingID string, amount float64) (*BookingView, error)
	VerifyFinalPayment(ctx context.Context, actor models.Actor, bookingID string, cb models.PaymentCallback) (*BookingView, error)
	RateBooking(ctx context.Context, actor models.Actor, bookingID string, rating int, feedback string) (*BookingView, error)
	RequestRefund(ctx context.Context, actor models.Actor, bookingID string, amount float64, reason string) (*BookingView, error)
	HandlePaymentEvent(ctx context.Context, ev *payment.WebhookEvent) error
	GetBooking(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error)
	ListBookings(ctx context.Context, actor models.Actor, filter models.BookingFilter) ([]BookingView, error)
	History(ctx context.Context, actor models.Actor, bookingID string) ([]models.StatusEvent, error)
}

// DefaultBookingService validates request shape, resolves access and
// delegates to the engine. A version conflict is retried once with a fresh read.
type DefaultBookingService struct {
	engine   *Engine
	resolver *AssignmentResolver
	bookings bookingRepo.BookingRepository
	logger   *zap.Logger
}

func NewBookingService(engine *Engine, resolver *AssignmentResolver, bookings bookingRepo.BookingRepository, logger *zap.Logger) *DefaultBookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultBookingService{engine: engine, resolver: resolver, bookings: bookings, logger: logger}
}

func (s *DefaultBookingService) CreateBooking(ctx context.Context, actor models.Actor, in CreateBookingInput) (*CreateBookingResult, error) {
	if actor.Kind != models.ActorCustomer {
		return nil, invalid(TriggerCreate, "", "only customers can create bookings")
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return nil, NewValidationError("categoryId", "is required")
	}
	amount, err := minorAmount("initialAmount", in.InitialAmount)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, NewValidationError("initialAmount", "must be positive")
	}
	if in.ScheduledAt.IsZero() || !in.ScheduledAt.After(s.engine.Now()) {
		return nil, NewValidationError("scheduledAt", "must be in the future")
	}

	b, order, err := s.engine.Create(ctx, CreateRequest{
		CustomerID:    actor.ID,
		CategoryID:    in.CategoryID,
		ScheduledAt:   in.ScheduledAt,
		InitialAmount: amount,
	}, actor)
	if err != nil {
		return nil, err
	}
	return &CreateBookingResult{
		BookingID:       b.ID,
		PaymentOrderRef: order.OrderRef,
		ClientSecret:    order.ClientSecret,
		Booking:         b,
	}, nil
}

func (s *DefaultBookingService) VerifyInitialPayment(ctx context.Context, actor models.Actor, bookingID string, cb models.PaymentCallback) (*BookingView, error) {
	if err := validateCallback(bookingID, cb); err != nil {
		return nil, err
	}
	b, err := s.apply(ctx, bookingID, TriggerInitialPaymentVerified, actor, Payload{Callback: &cb})
	if IsInvalidTransition(err) {
		// The booking cannot be confirmed any more, but money the gateway
		// took for it still has to be recorded and refunded.
		if _, lateErr := s.recordLateCapture(ctx, bookingID, cb); lateErr != nil {
			s.logger.Error("Recording late initial payment failed", zap.String("bookingID", bookingID), zap.Error(lateErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return s.view(s.assignAfterConfirm(ctx, b)), nil
}

func (s *DefaultBookingService) CancelBooking(ctx context.Context, actor models.Actor, bookingID, reason string) (*BookingView, error) {
	if bookingID == "" {
		return nil, NewValidationError("bookingId", "is required")
	}
	b, err := s.apply(ctx, bookingID, TriggerCustomerCancel, actor, Payload{Reason: strings.TrimSpace(reason)})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) AcceptBooking(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error) {
	if bookingID == "" {
		return nil, NewValidationError("bookingId", "is required")
	}
	if actor.Kind != models.ActorProvider {
		return nil, invalid(TriggerProviderAssigned, "", "only providers can accept bookings")
	}
	b, err := s.resolver.AssignProvider(ctx, bookingID, actor.ID, actor)
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) StartService(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error) {
	if bookingID == "" {
		return nil, NewValidationError("bookingId", "is required")
	}
	b, err := s.apply(ctx, bookingID, TriggerProviderStart, actor, Payload{})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) RequestCompletionPayment(ctx context.Context, actor models.Actor, bookingID string, amount float64) (*BookingView, error) {
	if bookingID == "" {
		return nil, NewValidationError("bookingId", "is required")
	}
	minor, err := minorAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	if minor <= 0 {
		return nil, NewValidationError("amount", "must be positive")
	}
	b, err := s.apply(ctx, bookingID, TriggerCompletionPaymentRequested, actor, Payload{FinalAmount: minor})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) VerifyFinalPayment(ctx context.Context, actor models.Actor, bookingID string, cb models.PaymentCallback) (*BookingView, error) {
	if err := validateCallback(bookingID, cb); err != nil {
		return nil, err
	}
	b, err := s.apply(ctx, bookingID, TriggerFinalPaymentVerified, actor, Payload{Callback: &cb})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) RateBooking(ctx context.Context, actor models.Actor, bookingID string, rating int, feedback string) (*BookingView, error) {
	if bookingID == "" {
		return nil, NewValidationError("bookingId", "is required")
	}
	if rating < 1 || rating > 5 {
		return nil, NewValidationError("rating", "must be between 1 and 5")
	}
	b, err := s.apply(ctx, bookingID, TriggerRate, actor, Payload{Rating: rating, Feedback: strings.TrimSpace(feedback)})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) RequestRefund(ctx context.Context, actor models.Actor, bookingID string, amount float64, reason string) (*BookingView, error) {
	if actor.Kind != models.ActorAdmin {
		return nil, invalid(TriggerRefundRequested, "", "only an operator can request a refund")
	}
	if amount < 0 {
		return nil, NewValidationError("amount", "must not be negative")
	}
	minor, err := minorAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	b, err := s.apply(ctx, bookingID, TriggerRefundRequested, actor, Payload{RefundAmount: minor, Reason: reason})
	if err != nil {
		return nil, err
	}
	return s.view(b), nil
}

// HandlePaymentEvent applies a gateway webhook. A payment already verified
// through the client callback is not an error.
func (s *DefaultBookingService) HandlePaymentEvent(ctx context.Context, ev *payment.WebhookEvent) error {
	if ev == nil || !ev.Succeeded() {
		return nil
	}
	if ev.BookingID == "" {
		return NewValidationError("bookingId", "missing from payment metadata")
	}

	var trigger Trigger
	switch ev.Kind {
	case models.PaymentKindInitial:
		trigger = TriggerInitialPaymentVerified
	case models.PaymentKindFinal:
		trigger = TriggerFinalPaymentVerified
	default:
		return NewValidationError("kind", "unknown payment kind "+string(ev.Kind))
	}

	cb := ev.Callback
	b, err := s.apply(ctx, ev.BookingID, trigger, models.SystemActor(), Payload{Callback: &cb})
	if IsInvalidTransition(err) && trigger == TriggerInitialPaymentVerified {
		recorded, lateErr := s.recordLateCapture(ctx, ev.BookingID, cb)
		if lateErr != nil {
			return lateErr
		}
		if recorded {
			return nil
		}
	}
	if IsInvalidTransition(err) {
		s.logger.Info("Payment webhook already applied",
			zap.String("bookingID", ev.BookingID),
			zap.String("trigger", string(trigger)),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	if trigger == TriggerInitialPaymentVerified {
		s.assignAfterConfirm(ctx, b)
	}
	return nil
}

// recordLateCapture handles an initial payment that arrived after the
// booking stopped accepting it. A pending booking past its window is
// expired first. It reports false when there is nothing to record: the
// payment was already booked, the booking is still live, or the gateway
// holds no capture for the order.
func (s *DefaultBookingService) recordLateCapture(ctx context.Context, bookingID string, cb models.PaymentCallback) (bool, error) {
	b, err := s.engine.Get(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.InitialPayment.Status == models.PaymentPaid {
		return false, nil
	}
	if b.Status == models.StatusPending && s.engine.windowElapsed(b, s.engine.Now()) {
		version := b.Version
		_, err := s.engine.Apply(ctx, bookingID, TriggerPaymentWindowElapsed, models.SystemActor(), Payload{ExpectedVersion: &version})
		if err != nil && !IsConflict(err) && !IsInvalidTransition(err) {
			return false, err
		}
	}

	b, err = s.apply(ctx, bookingID, TriggerLatePaymentCaptured, models.SystemActor(), Payload{Callback: &cb})
	switch {
	case errors.Is(err, payment.ErrNotCaptured):
		s.logger.Info("No capture behind late payment callback", zap.String("bookingID", bookingID))
		return false, nil
	case IsInvalidTransition(err):
		return false, nil
	case err != nil:
		return false, err
	}
	s.logger.Warn("Initial payment captured after cancellation; refund requested",
		zap.String("bookingID", bookingID),
		zap.String("paymentID", b.InitialPayment.PaymentID),
		zap.Int64("refundAmount", b.RefundAmount),
		zap.String("refundStatus", string(b.RefundStatus)))
	return true, nil
}

func (s *DefaultBookingService) GetBooking(ctx context.Context, actor models.Actor, bookingID string) (*BookingView, error) {
	b, err := s.engine.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, b) {
		return nil, ErrForbidden
	}
	return s.view(b), nil
}

func (s *DefaultBookingService) ListBookings(ctx context.Context, actor models.Actor, filter models.BookingFilter) ([]BookingView, error) {
	switch actor.Kind {
	case models.ActorCustomer:
		if filter.CustomerID != "" && filter.CustomerID != actor.ID {
			return nil, ErrForbidden
		}
		filter.CustomerID = actor.ID
	case models.ActorProvider:
		if filter.ProviderID != "" && filter.ProviderID != actor.ID {
			return nil, ErrForbidden
		}
		filter.ProviderID = actor.ID
	case models.ActorAdmin:
	default:
		return nil, ErrForbidden
	}
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, NewValidationError("status", "unknown status "+string(st))
		}
	}

	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]BookingView, 0, len(bookings))
	for i := range bookings {
		out = append(out, *s.view(&bookings[i]))
	}
	return out, nil
}

func (s *DefaultBookingService) History(ctx context.Context, actor models.Actor, bookingID string) ([]models.StatusEvent, error) {
	b, err := s.engine.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, b) {
		return nil, ErrForbidden
	}
	return s.bookings.History(ctx, bookingID)
}

// apply retries exactly once on a version conflict, re-reading the booking.
func (s *DefaultBookingService) apply(ctx context.Context, bookingID string, trigger Trigger, actor models.Actor, p Payload) (*models.Booking, error) {
	b, err := s.engine.Apply(ctx, bookingID, trigger, actor, p)
	if !IsConflict(err) {
		return b, err
	}
	s.logger.Debug("Retrying after version conflict",
		zap.String("bookingID", bookingID),
		zap.String("trigger", string(trigger)))
	return s.engine.Apply(ctx, bookingID, trigger, actor, p)
}

// assignAfterConfirm tries to bind a provider right away. Failure is fine;
// the sweep tries again.
func (s *DefaultBookingService) assignAfterConfirm(ctx context.Context, b *models.Booking) *models.Booking {
	if s.resolver == nil || b.Status != models.StatusConfirmed || b.HasProvider() {
		return b
	}
	_, ok, err := s.resolver.TryAssign(ctx, b.ID)
	if err != nil && !errors.Is(err, ErrAlreadyAssigned) {
		s.logger.Warn("Immediate assignment failed", zap.String("bookingID", b.ID), zap.Error(err))
	}
	if !ok {
		return b
	}
	if fresh, err := s.engine.Get(ctx, b.ID); err == nil {
		return fresh
	}
	return b
}

func (s *DefaultBookingService) view(b *models.Booking) *BookingView {
	v := &BookingView{Booking: b}
	if b.Status == models.StatusPending {
		w := s.engine.PaymentWindowFor(b, s.engine.Now())
		v.PaymentWindow = &w
	}
	return v
}

func canView(actor models.Actor, b *models.Booking) bool {
	switch actor.Kind {
	case models.ActorAdmin, models.ActorSystem:
		return true
	case models.ActorCustomer:
		return b.CustomerID == actor.ID
	case models.ActorProvider:
		return b.AssignedTo(actor.ID)
	}
	return false
}

// minorAmount converts a request amount, rejecting values that do not fit.
func minorAmount(field string, major float64) (int64, error) {
	minor, err := MinorUnitsFromFloat(major)
	if err != nil {
		return 0, NewValidationError(field, "is out of range")
	}
	return minor, nil
}

func validateCallback(bookingID string, cb models.PaymentCallback) error {
	if bookingID == "" {
		return NewValidationError("bookingId", "is required")
	}
	if cb.OrderRef == "" || cb.PaymentID == "" {
		return NewValidationError("payment", "orderRef and paymentId are required")
	}
	return nil
}
