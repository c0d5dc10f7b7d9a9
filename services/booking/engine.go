package booking

import (
	"context"
	"errors"
	"time"

	bookingRepo "fieldhand/database/repository/booking"
	categoryRepo "fieldhand/database/repository/category"
	providerRepo "fieldhand/database/repository/provider"
	"fieldhand/models"
	"fieldhand/services/payment"
	"fieldhand/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineDeps wires the engine's collaborators. Publisher, Notifier and
// Refunds are optional.
type EngineDeps struct {
	Bookings   bookingRepo.BookingRepository
	Categories categoryRepo.CategoryRepository
	Providers  providerRepo.ProviderRepository
	Gateway    payment.Gateway
	Clock      utils.Clock
	Publisher  EventPublisher
	Notifier   Notifier
	Refunds    RefundQueue
	Logger     *zap.Logger
	Settings   Settings
}

// Engine owns every booking state change. All transitions go through Apply.
type Engine struct {
	bookings   bookingRepo.BookingRepository
	categories categoryRepo.CategoryRepository
	providers  providerRepo.ProviderRepository
	gateway    payment.Gateway
	clock      utils.Clock
	publisher  EventPublisher
	notifier   Notifier
	refunds    RefundQueue
	logger     *zap.Logger
	tracer     trace.Tracer
	settings   Settings
}

func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		bookings:   deps.Bookings,
		categories: deps.Categories,
		providers:  deps.Providers,
		gateway:    deps.Gateway,
		clock:      deps.Clock,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		refunds:    deps.Refunds,
		logger:     deps.Logger,
		tracer:     otel.Tracer("fieldhand/services/booking"),
		settings:   deps.Settings,
	}
	if e.clock == nil {
		e.clock = utils.SystemClock{}
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.refunds == nil {
		e.refunds = noopRefundQueue{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.settings.PaymentWindow <= 0 || e.settings.ProviderEditWindow <= 0 {
		defaults := DefaultSettings()
		if e.settings.PaymentWindow <= 0 {
			e.settings.PaymentWindow = defaults.PaymentWindow
		}
		if e.settings.ProviderEditWindow <= 0 {
			e.settings.ProviderEditWindow = defaults.ProviderEditWindow
		}
	}
	if e.settings.RefundStaleAfter <= 0 {
		e.settings.RefundStaleAfter = DefaultSettings().RefundStaleAfter
	}
	if e.settings.Currency == "" {
		e.settings.Currency = DefaultSettings().Currency
	}
	return e
}

// Create opens a pending booking and the gateway order for its initial fee.
func (e *Engine) Create(ctx context.Context, req CreateRequest, actor models.Actor) (*models.Booking, *models.Order, error) {
	ctx, span := e.tracer.Start(ctx, "booking.Create",
		trace.WithAttributes(attribute.String("booking.category_id", req.CategoryID)))
	defer span.End()

	if !actor.IsCustomer(req.CustomerID) {
		return nil, nil, invalid(TriggerCreate, "", "only the customer can create their booking")
	}
	if req.InitialAmount <= 0 {
		return nil, nil, NewValidationError("initialAmount", "must be positive")
	}
	now := e.clock.Now()
	if !req.ScheduledAt.After(now) {
		return nil, nil, NewValidationError("scheduledAt", "must be in the future")
	}
	category, err := e.categories.GetByID(ctx, req.CategoryID)
	if errors.Is(err, categoryRepo.ErrNotFound) {
		return nil, nil, &NotFoundError{Resource: "category", ID: req.CategoryID}
	}
	if err != nil {
		return nil, nil, err
	}
	if !category.Active {
		return nil, nil, NewValidationError("categoryId", "category is not accepting bookings")
	}

	id := uuid.NewString()
	order, err := e.gateway.CreateOrder(ctx, models.OrderRequest{
		BookingID:      id,
		Kind:           models.PaymentKindInitial,
		Amount:         req.InitialAmount,
		Currency:       e.settings.Currency,
		IdempotencyKey: id + ":initial",
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, nil, gatewayError("create order", err)
	}

	requestedAt := now
	b := &models.Booking{
		ID:            id,
		CustomerID:    req.CustomerID,
		CategoryID:    req.CategoryID,
		Status:        models.StatusPending,
		Version:       1,
		ScheduledAt:   req.ScheduledAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Currency:      e.settings.Currency,
		InitialAmount: req.InitialAmount,
		InitialPayment: models.PaymentLeg{
			OrderRef:    order.OrderRef,
			Status:      models.PaymentPending,
			RequestedAt: &requestedAt,
		},
		FinalPayment: models.PaymentLeg{Status: models.PaymentNone},
		RefundStatus: models.RefundNone,
	}
	event := models.StatusEvent{
		ID:        uuid.NewString(),
		BookingID: id,
		To:        models.StatusPending,
		Trigger:   string(TriggerCreate),
		Actor:     actor,
		Version:   1,
		At:        now,
	}
	if err := e.bookings.Create(ctx, b, event); err != nil {
		recordSpanError(span, err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("booking.id", id))

	e.logger.Info("Booking created",
		zap.String("bookingID", id),
		zap.String("customerID", req.CustomerID),
		zap.String("categoryID", req.CategoryID),
		zap.Int64("initialAmount", req.InitialAmount))
	e.afterApply(ctx, nil, b, TriggerCreate, actor)
	return b.Clone(), order, nil
}

// Apply loads the booking, checks the trigger's guard against its state and
// the actor, and persists the result if the version is unchanged. It never retries.
func (e *Engine) Apply(ctx context.Context, bookingID string, trigger Trigger, actor models.Actor, payload Payload) (*models.Booking, error) {
	ctx, span := e.tracer.Start(ctx, "booking.Apply", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("booking.trigger", string(trigger)),
		attribute.String("actor.kind", string(actor.Kind)),
	))
	defer span.End()

	b, err := e.apply(ctx, bookingID, trigger, actor, payload)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.status", string(b.Status)))
	return b, nil
}

func (e *Engine) apply(ctx context.Context, bookingID string, trigger Trigger, actor models.Actor, payload Payload) (*models.Booking, error) {
	if !trigger.IsKnown() {
		return nil, NewValidationError("trigger", "unknown trigger "+string(trigger))
	}

	current, err := e.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	expected := current.Version
	if payload.ExpectedVersion != nil && *payload.ExpectedVersion != expected {
		return nil, conflict(trigger, current.Status)
	}

	to, ok := NextStatus(current.Status, trigger)
	if !ok {
		return nil, invalid(trigger, current.Status, "not allowed in this state")
	}

	now := e.clock.Now()
	next := current.Clone()
	note, err := e.guardAndMutate(ctx, current, next, trigger, actor, payload, now)
	if err != nil {
		return nil, err
	}
	next.Status = to
	next.UpdatedAt = now

	event := models.StatusEvent{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		From:      current.Status,
		To:        to,
		Trigger:   string(trigger),
		Actor:     actor,
		Note:      note,
		At:        now,
	}
	if err := e.bookings.Update(ctx, next, expected, event); err != nil {
		switch {
		case errors.Is(err, bookingRepo.ErrVersionConflict):
			return nil, conflict(trigger, current.Status)
		case errors.Is(err, bookingRepo.ErrNotFound):
			return nil, &NotFoundError{Resource: "booking", ID: bookingID}
		}
		return nil, err
	}

	e.logger.Info("Booking transition applied",
		zap.String("bookingID", bookingID),
		zap.String("trigger", string(trigger)),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
		zap.String("actor", actor.String()),
		zap.Int64("version", next.Version))
	return e.afterApply(ctx, current, next, trigger, actor).Clone(), nil
}

// Get returns the stored booking or a NotFoundError.
func (e *Engine) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrNotFound) {
		return nil, &NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// PaymentWindowFor reports the initial-payment deadline as seen at now.
func (e *Engine) PaymentWindowFor(b *models.Booking, now time.Time) models.PaymentWindow {
	expiresAt := b.CreatedAt.Add(e.settings.PaymentWindow)
	remaining := int64(expiresAt.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return models.PaymentWindow{
		ExpiresAt:        expiresAt,
		RemainingSeconds: remaining,
		Payable: b.Status == models.StatusPending &&
			b.InitialPayment.Status != models.PaymentPaid &&
			!e.windowElapsed(b, now),
	}
}

// windowElapsed is strict: a payment exactly at the deadline is still accepted.
func (e *Engine) windowElapsed(b *models.Booking, now time.Time) bool {
	return now.Sub(b.CreatedAt) > e.settings.PaymentWindow
}

// Now exposes the engine clock to adapters.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func gatewayError(op string, err error) error {
	return &GatewayError{Op: op, Timeout: errors.Is(err, payment.ErrGatewayTimeout), Err: err}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
