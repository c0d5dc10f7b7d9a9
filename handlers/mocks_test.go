package handlers

import (
	"context"

	"fieldhand/models"
	"fieldhand/services/booking"
	"fieldhand/services/payment"
)

// stubService returns canned results and records what it was called with.
type stubService struct {
	err        error
	view       *booking.BookingView
	lastActor  models.Actor
	lastID     string
	lastFilter models.BookingFilter
	lastAmount float64
	events     []*payment.WebhookEvent
}

func (s *stubService) result(actor models.Actor, id string) (*booking.BookingView, error) {
	s.lastActor, s.lastID = actor, id
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func (s *stubService) CreateBooking(_ context.Context, actor models.Actor, in booking.CreateBookingInput) (*booking.CreateBookingResult, error) {
	s.lastActor, s.lastAmount = actor, in.InitialAmount
	if s.err != nil {
		return nil, s.err
	}
	return &booking.CreateBookingResult{BookingID: "b1", PaymentOrderRef: "order_1"}, nil
}

func (s *stubService) VerifyInitialPayment(_ context.Context, actor models.Actor, id string, _ models.PaymentCallback) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) CancelBooking(_ context.Context, actor models.Actor, id, _ string) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) AcceptBooking(_ context.Context, actor models.Actor, id string) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) StartService(_ context.Context, actor models.Actor, id string) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) RequestCompletionPayment(_ context.Context, actor models.Actor, id string, amount float64) (*booking.BookingView, error) {
	s.lastAmount = amount
	return s.result(actor, id)
}

func (s *stubService) VerifyFinalPayment(_ context.Context, actor models.Actor, id string, _ models.PaymentCallback) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) RateBooking(_ context.Context, actor models.Actor, id string, _ int, _ string) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) RequestRefund(_ context.Context, actor models.Actor, id string, amount float64, _ string) (*booking.BookingView, error) {
	s.lastAmount = amount
	return s.result(actor, id)
}

func (s *stubService) HandlePaymentEvent(_ context.Context, ev *payment.WebhookEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func (s *stubService) GetBooking(_ context.Context, actor models.Actor, id string) (*booking.BookingView, error) {
	return s.result(actor, id)
}

func (s *stubService) ListBookings(_ context.Context, actor models.Actor, filter models.BookingFilter) ([]booking.BookingView, error) {
	s.lastActor, s.lastFilter = actor, filter
	if s.err != nil {
		return nil, s.err
	}
	return []booking.BookingView{*s.view}, nil
}

func (s *stubService) History(_ context.Context, actor models.Actor, id string) ([]models.StatusEvent, error) {
	s.lastActor, s.lastID = actor, id
	if s.err != nil {
		return nil, s.err
	}
	return []models.StatusEvent{{BookingID: id, To: models.StatusPending, Version: 1}}, nil
}
