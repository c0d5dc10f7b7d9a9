package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldhand/models"
	"fieldhand/services/payment"
)

func TestEngine_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a valid request When created Then booking is pending with an initial order", func(t *testing.T) {
		// Given
		f := newFixture(t)

		// When
		b := f.create(t, 500)

		// Then
		if b.Status != models.StatusPending || b.Version != 1 {
			t.Fatalf("unexpected booking %+v", b)
		}
		if b.InitialAmount != 50000 {
			t.Errorf("expected 50000 minor units, got %d", b.InitialAmount)
		}
		if b.InitialPayment.OrderRef == "" || b.InitialPayment.Status != models.PaymentPending {
			t.Errorf("expected pending initial order, got %+v", b.InitialPayment)
		}
		if b.ProviderID != nil {
			t.Errorf("pending booking must not have a provider")
		}
		history, _ := f.bookings.History(ctx, b.ID)
		if len(history) != 1 || history[0].Trigger != string(TriggerCreate) {
			t.Errorf("unexpected history %+v", history)
		}
	})

	t.Run("Given an unknown category When created Then NotFoundError", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.Create(ctx, CreateRequest{
			CustomerID: "c1", CategoryID: "nope", ScheduledAt: fixtureStart.Add(time.Hour), InitialAmount: 100,
		}, models.CustomerActor("c1"))

		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("Given an inactive category When created Then ValidationError", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.Create(ctx, CreateRequest{
			CustomerID: "c1", CategoryID: "retired", ScheduledAt: fixtureStart.Add(time.Hour), InitialAmount: 100,
		}, models.CustomerActor("c1"))

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Given a past schedule When created Then ValidationError", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.Create(ctx, CreateRequest{
			CustomerID: "c1", CategoryID: "plumbing", ScheduledAt: fixtureStart.Add(-time.Minute), InitialAmount: 100,
		}, models.CustomerActor("c1"))

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Given another customer's identity When created Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.Create(ctx, CreateRequest{
			CustomerID: "c1", CategoryID: "plumbing", ScheduledAt: fixtureStart.Add(time.Hour), InitialAmount: 100,
		}, models.CustomerActor("c2"))

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})
}

func TestEngine_InitialPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a verified payment When verified again Then InvalidTransition and booking unchanged", func(t *testing.T) {
		// Given
		f := newFixture(t)
		b := f.create(t, 500)
		cb := f.gateway.callback(b.InitialPayment.OrderRef, "pay_1")
		first, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})
		if err != nil {
			t.Fatalf("first verify: %v", err)
		}

		// When
		_, err = f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		// Then
		if !IsInvalidTransition(err) {
			t.Fatalf("expected InvalidTransition, got %v", err)
		}
		after := f.get(t, b.ID)
		if after.Version != first.Version || after.Status != models.StatusConfirmed {
			t.Errorf("booking changed: %+v", after)
		}
	})

	t.Run("Given a gateway timeout When verifying Then GatewayError and booking stays pending", func(t *testing.T) {
		// Given
		f := newFixture(t)
		b := f.create(t, 500)
		f.gateway.setVerifyErr(fmt.Errorf("stripe retrieve: %w", payment.ErrGatewayTimeout))
		cb := f.gateway.callback(b.InitialPayment.OrderRef, "pay_1")

		// When
		_, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		// Then
		var ge *GatewayError
		if !errors.As(err, &ge) || !ge.Timeout {
			t.Fatalf("expected timeout GatewayError, got %v", err)
		}
		after := f.get(t, b.ID)
		if after.Status != models.StatusPending || after.Version != b.Version {
			t.Errorf("booking must be untouched, got %+v", after)
		}

		// And the customer may retry once the gateway recovers.
		f.gateway.setVerifyErr(nil)
		if _, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb}); err != nil {
			t.Errorf("retry after timeout: %v", err)
		}
	})

	t.Run("Given a forged signature When verifying Then ValidationError", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t, 500)
		cb := models.PaymentCallback{OrderRef: b.InitialPayment.OrderRef, PaymentID: "pay_1", Signature: "forged"}

		_, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Given another booking's order When verifying Then ValidationError", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t, 500)
		other := f.create(t, 500)
		cb := f.gateway.callback(other.InitialPayment.OrderRef, "pay_1")

		_, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Given the window has elapsed When verifying Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t, 500)
		f.clock.Advance(24*time.Hour + time.Second)
		cb := f.gateway.callback(b.InitialPayment.OrderRef, "pay_1")

		_, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})

	t.Run("Given a different customer When verifying Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t, 500)
		cb := f.gateway.callback(b.InitialPayment.OrderRef, "pay_1")

		_, err := f.engine.Apply(ctx, b.ID, TriggerInitialPaymentVerified, models.CustomerActor("c2"), Payload{Callback: &cb})

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})
}

func TestEngine_ExpectedVersion(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500)
	stale := b.Version - 1

	_, err := f.engine.Apply(context.Background(), b.ID, TriggerCustomerCancel, models.CustomerActor("c1"), Payload{ExpectedVersion: &stale})

	if !IsConflict(err) {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if got := f.get(t, b.ID); got.Status != models.StatusPending {
		t.Errorf("stale write must not apply, got %s", got.Status)
	}
}

func TestEngine_UnknownBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Apply(context.Background(), "missing", TriggerCustomerCancel, models.CustomerActor("c1"), Payload{})

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestEngine_PaymentWindowElapsedIsSystemOnly(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500)
	f.clock.Advance(25 * time.Hour)

	for _, actor := range []models.Actor{models.CustomerActor("c1"), models.AdminActor("a1"), models.ProviderActor("p1")} {
		if _, err := f.engine.Apply(context.Background(), b.ID, TriggerPaymentWindowElapsed, actor, Payload{}); !IsInvalidTransition(err) {
			t.Errorf("%s: expected InvalidTransition, got %v", actor, err)
		}
	}
	got, err := f.engine.Apply(context.Background(), b.ID, TriggerPaymentWindowElapsed, models.SystemActor(), Payload{})
	if err != nil {
		t.Fatalf("system expiry: %v", err)
	}
	if got.CancelReason != models.CancelReasonPaymentExpired || got.CancelledBy != models.ActorSystem {
		t.Errorf("unexpected cancellation %+v", got)
	}
}

func TestEngine_PaymentWindowFor(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500)

	w := f.engine.PaymentWindowFor(b, fixtureStart.Add(23*time.Hour))
	if !w.Payable || w.RemainingSeconds != 3600 {
		t.Errorf("unexpected window %+v", w)
	}
	if !w.ExpiresAt.Equal(fixtureStart.Add(24 * time.Hour)) {
		t.Errorf("unexpected expiry %s", w.ExpiresAt)
	}

	w = f.engine.PaymentWindowFor(b, fixtureStart.Add(24*time.Hour))
	if !w.Payable {
		t.Errorf("payment exactly at the deadline is still accepted")
	}

	w = f.engine.PaymentWindowFor(b, fixtureStart.Add(24*time.Hour+time.Second))
	if w.Payable || w.RemainingSeconds != 0 {
		t.Errorf("expected closed window, got %+v", w)
	}
}

func TestEngine_CompletionPayment(t *testing.T) {
	ctx := context.Background()

	started := func(t *testing.T) (*fixture, *models.Booking) {
		t.Helper()
		f := newFixture(t, plumber("p1", 9, 2))
		b := f.create(t, 500)
		v := f.payInitial(t, b)
		if !v.AssignedTo("p1") {
			t.Fatalf("expected p1 assigned, got %v", v.ProviderID)
		}
		s, err := f.service.StartService(ctx, models.ProviderActor("p1"), b.ID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		return f, s.Booking
	}

	t.Run("Given an amount below the category minimum When requested Then ValidationError", func(t *testing.T) {
		f, b := started(t)

		_, err := f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 79999})

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if got := f.get(t, b.ID); got.FinalAmount != nil || got.Version != b.Version {
			t.Errorf("booking changed: %+v", got)
		}
	})

	t.Run("Given another provider When requesting Then InvalidTransition", func(t *testing.T) {
		f, b := started(t)

		_, err := f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p2"), Payload{FinalAmount: 120000})

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})

	t.Run("Given a request When revised inside the edit window Then a new order replaces the old", func(t *testing.T) {
		f, b := started(t)
		first, err := f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 120000})
		if err != nil {
			t.Fatalf("first request: %v", err)
		}

		f.clock.Advance(11 * time.Hour)
		revised, err := f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 150000})
		if err != nil {
			t.Fatalf("revision: %v", err)
		}
		if *revised.FinalAmount != 150000 || revised.FinalPayment.OrderRef == first.FinalPayment.OrderRef {
			t.Errorf("revision not applied: %+v", revised.FinalPayment)
		}
		if !revised.FinalPayment.RequestedAt.Equal(*first.FinalPayment.RequestedAt) {
			t.Errorf("edit window must run from the first request")
		}

		f.clock.Advance(2 * time.Hour)
		_, err = f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 160000})
		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition after edit window, got %v", err)
		}
	})

	t.Run("Given an old order When the customer pays it after a revision Then ValidationError", func(t *testing.T) {
		f, b := started(t)
		first, _ := f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 120000})
		_, _ = f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 150000})
		cb := f.gateway.callback(first.FinalPayment.OrderRef, "pay_final")

		_, err := f.engine.Apply(ctx, b.ID, TriggerFinalPaymentVerified, models.CustomerActor("c1"), Payload{Callback: &cb})

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Given a completion request When the customer cancels Then InvalidTransition", func(t *testing.T) {
		f, b := started(t)
		_, _ = f.engine.Apply(ctx, b.ID, TriggerCompletionPaymentRequested, models.ProviderActor("p1"), Payload{FinalAmount: 120000})

		_, err := f.service.CancelBooking(ctx, models.CustomerActor("c1"), b.ID, "changed my mind")

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})

	t.Run("Given a free-form category When any positive amount is requested Then it is accepted", func(t *testing.T) {
		f := newFixture(t, models.Provider{ID: "p9", CategoryIDs: []string{"other"}, Available: true})
		res, err := f.service.CreateBooking(ctx, models.CustomerActor("c1"), CreateBookingInput{
			CategoryID: "other", ScheduledAt: fixtureStart.Add(time.Hour), InitialAmount: 100,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		f.payInitial(t, res.Booking)
		if _, err := f.service.StartService(ctx, models.ProviderActor("p9"), res.BookingID); err != nil {
			t.Fatalf("start: %v", err)
		}

		got, err := f.engine.Apply(ctx, res.BookingID, TriggerCompletionPaymentRequested, models.ProviderActor("p9"), Payload{FinalAmount: 99999999})

		if err != nil || *got.FinalAmount != 99999999 {
			t.Errorf("expected acceptance, got %v", err)
		}
	})
}

func TestEngine_Rating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, plumber("p1", 0, 0))
	b := completedBooking(t, f, "p1")

	if _, err := f.service.RateBooking(ctx, models.CustomerActor("c1"), b.ID, 6, ""); err == nil {
		t.Fatalf("rating 6 must be rejected")
	}
	if _, err := f.service.RateBooking(ctx, models.CustomerActor("c2"), b.ID, 5, ""); !IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition for stranger, got %v", err)
	}

	rated, err := f.service.RateBooking(ctx, models.CustomerActor("c1"), b.ID, 5, "great")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !rated.IsRated || rated.Rating != 5 || rated.Status != models.StatusCompleted {
		t.Errorf("unexpected rated booking %+v", rated.Booking)
	}

	_, err = f.service.RateBooking(ctx, models.CustomerActor("c1"), b.ID, 4, "again")
	if !IsInvalidTransition(err) {
		t.Errorf("expected InvalidTransition on second rating, got %v", err)
	}

	p, _ := f.providers.GetByID(ctx, "p1")
	if p.RatingCount != 1 || p.RatingSum != 5 {
		t.Errorf("provider aggregate not updated: %+v", p)
	}
}

func TestEngine_SideEffects(t *testing.T) {
	f := newFixture(t, plumber("p1", 0, 0))
	b := completedBooking(t, f, "p1")

	want := []string{
		"booking.create",
		"booking.initial-payment-verified",
		"booking.provider-assigned",
		"booking.provider-start",
		"booking.completion-payment-requested",
		"booking.final-payment-verified",
	}
	got := f.publisher.names()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: want %s, got %s", i, want[i], got[i])
		}
	}

	p, _ := f.providers.GetByID(context.Background(), "p1")
	if !p.Available || p.CurrentBookingID != "" {
		t.Errorf("provider must be released after completion: %+v", p)
	}
	if len(f.notifier.sent) == 0 {
		t.Errorf("expected push notifications")
	}
	_ = b
}

// completedBooking drives a booking through the happy path with providerID.
func completedBooking(t *testing.T, f *fixture, providerID string) *models.Booking {
	t.Helper()
	ctx := context.Background()
	b := f.create(t, 500)
	f.payInitial(t, b)
	if _, err := f.service.AcceptBooking(ctx, models.ProviderActor(providerID), b.ID); err != nil && !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.StartService(ctx, models.ProviderActor(providerID), b.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	req, err := f.service.RequestCompletionPayment(ctx, models.ProviderActor(providerID), b.ID, 1200)
	if err != nil {
		t.Fatalf("request completion: %v", err)
	}
	done, err := f.service.VerifyFinalPayment(ctx, models.CustomerActor("c1"), b.ID,
		f.gateway.callback(req.FinalPayment.OrderRef, "pay_final_"+b.ID))
	if err != nil {
		t.Fatalf("verify final: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	return done.Booking
}
