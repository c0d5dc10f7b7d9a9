package payment

import (
	"context"
	"errors"
	"testing"

	"fieldhand/models"
)

func TestSandboxGateway_Verify(t *testing.T) {
	ctx := context.Background()
	gw := NewSandboxGateway("test-secret")
	order, err := gw.CreateOrder(ctx, models.OrderRequest{BookingID: "b1", Kind: models.PaymentKindInitial, Amount: 5000, Currency: "inr"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	t.Run("Given a correctly signed callback When verified Then the captured amount is returned", func(t *testing.T) {
		cb := models.PaymentCallback{OrderRef: order.OrderRef, PaymentID: "pay_1", Signature: gw.Sign(order.OrderRef, "pay_1")}

		v, err := gw.Verify(ctx, cb)

		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if v.Amount != 5000 || v.BookingID != "b1" {
			t.Errorf("unexpected verification %+v", v)
		}
	})

	t.Run("Given a tampered signature When verified Then ErrInvalidSignature", func(t *testing.T) {
		cb := models.PaymentCallback{OrderRef: order.OrderRef, PaymentID: "pay_2", Signature: gw.Sign(order.OrderRef, "pay_1")}

		if _, err := gw.Verify(ctx, cb); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("Given an expired context When verified Then ErrGatewayTimeout", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 0)
		defer cancel()
		cb := models.PaymentCallback{OrderRef: order.OrderRef, PaymentID: "pay_1", Signature: gw.Sign(order.OrderRef, "pay_1")}

		if _, err := gw.Verify(cctx, cb); !errors.Is(err, ErrGatewayTimeout) {
			t.Errorf("expected ErrGatewayTimeout, got %v", err)
		}
	})
}

func TestSandboxGateway_RefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := NewSandboxGateway("s")
	order, _ := gw.CreateOrder(ctx, models.OrderRequest{BookingID: "b1", Amount: 1000, Currency: "inr"})
	req := models.RefundRequest{BookingID: "b1", OrderRef: order.OrderRef, Amount: 1000, IdempotencyKey: "refund:b1"}

	first, err := gw.Refund(ctx, req)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	second, err := gw.Refund(ctx, req)
	if err != nil {
		t.Fatalf("second refund: %v", err)
	}
	if first.RefundID != second.RefundID {
		t.Errorf("expected same refund id, got %s and %s", first.RefundID, second.RefundID)
	}
}

func TestSandboxGateway_ParseWebhook(t *testing.T) {
	gw := NewSandboxGateway("s")
	payload := []byte(`{"type":"payment_intent.succeeded","bookingId":"b1","kind":"initial","orderRef":"order_1","paymentId":"pay_1"}`)

	t.Run("Given a signed payload When parsed Then the callback is re-signed for verification", func(t *testing.T) {
		ev, err := gw.ParseWebhook(payload, gw.SignWebhook(payload))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !ev.Succeeded() || ev.Kind != models.PaymentKindInitial || ev.Callback.Signature != gw.Sign("order_1", "pay_1") {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("Given a bad header When parsed Then ErrInvalidSignature", func(t *testing.T) {
		if _, err := gw.ParseWebhook(payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestSandboxGateway_CancelOrder(t *testing.T) {
	ctx := context.Background()
	gw := NewSandboxGateway("s")
	order, _ := gw.CreateOrder(ctx, models.OrderRequest{BookingID: "b1", Amount: 1000, Currency: "inr"})

	t.Run("Given an open order When cancelled Then it is recorded", func(t *testing.T) {
		if err := gw.CancelOrder(ctx, order.OrderRef); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if !gw.Cancelled(order.OrderRef) {
			t.Error("expected order to be marked cancelled")
		}
	})

	t.Run("Given an unknown order When cancelled Then ErrUnknownOrder", func(t *testing.T) {
		if err := gw.CancelOrder(ctx, "order_missing"); !errors.Is(err, ErrUnknownOrder) {
			t.Errorf("expected ErrUnknownOrder, got %v", err)
		}
	})
}
