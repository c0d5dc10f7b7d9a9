package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldhand/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	metaBookingID = "booking_id"
	metaKind      = "payment_kind"
)

// StripeGateway uses PaymentIntents as orders. The global stripe.Key must be set.
type StripeGateway struct {
	timeout       time.Duration
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeGateway(timeout time.Duration, webhookSecret string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{timeout: timeout, webhookSecret: webhookSecret, logger: logger}
}

func (g *StripeGateway) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.AddMetadata(metaBookingID, req.BookingID)
	params.AddMetadata(metaKind, string(req.Kind))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, classify("stripe create payment intent", err)
	}
	g.logger.Debug("stripe payment intent created",
		zap.String("bookingId", req.BookingID),
		zap.String("paymentIntent", pi.ID),
		zap.String("kind", string(req.Kind)))

	return &models.Order{
		OrderRef:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// Verify retrieves the PaymentIntent server-side; the client signature is not trusted.
func (g *StripeGateway) Verify(ctx context.Context, callback models.PaymentCallback) (*models.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(callback.OrderRef, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrUnknownOrder
		}
		return nil, classify("stripe retrieve payment intent", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment intent %s is %s: %w", pi.ID, pi.Status, ErrNotCaptured)
	}

	paymentID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		paymentID = pi.LatestCharge.ID
	}
	if callback.PaymentID != pi.ID && callback.PaymentID != paymentID {
		return nil, ErrInvalidSignature
	}

	return &models.Verification{
		OrderRef:  pi.ID,
		PaymentID: paymentID,
		Amount:    pi.AmountReceived,
		Currency:  string(pi.Currency),
		BookingID: pi.Metadata[metaBookingID],
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.OrderRef),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	params.AddMetadata(metaBookingID, req.BookingID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, classify("stripe create refund", err)
	}
	return &models.RefundResult{RefundID: r.ID, Status: string(r.Status)}, nil
}

// CancelOrder cancels the PaymentIntent behind an abandoned booking. Stripe
// rejects the call once the intent has succeeded.
func (g *StripeGateway) CancelOrder(ctx context.Context, orderRef string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	pi, err := paymentintent.Cancel(orderRef, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return ErrUnknownOrder
		}
		return classify("stripe cancel payment intent", err)
	}
	g.logger.Debug("stripe payment intent cancelled",
		zap.String("paymentIntent", pi.ID),
		zap.String("status", string(pi.Status)))
	return nil
}

// ParseWebhook validates the Stripe-Signature header and decodes PaymentIntent events.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{Type: string(event.Type)}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.BookingID = pi.Metadata[metaBookingID]
	out.Kind = models.PaymentKind(pi.Metadata[metaKind])
	out.Callback = models.PaymentCallback{OrderRef: pi.ID, PaymentID: pi.ID}
	return out, nil
}
