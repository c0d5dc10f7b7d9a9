package payment

import (
	"context"
	"errors"

	"fieldhand/models"
)

var (
	// ErrGatewayTimeout means the gateway did not answer before the deadline.
	// The outcome of the call is unknown.
	ErrGatewayTimeout = errors.New("payment gateway timeout")
	// ErrInvalidSignature means the callback could not be authenticated.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrNotCaptured means the gateway has no successful capture for the order.
	ErrNotCaptured = errors.New("payment not captured")
	// ErrUnknownOrder means the gateway does not know the order reference.
	ErrUnknownOrder = errors.New("unknown payment order")
)

// Gateway is the payment provider the booking engine talks to.
type Gateway interface {
	// CreateOrder opens a payment order the client can check out against.
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	// Verify authenticates a client callback and returns the captured payment.
	Verify(ctx context.Context, callback models.PaymentCallback) (*models.Verification, error)
	// Refund returns money for a captured payment.
	Refund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error)
	// CancelOrder stops an unpaid order from being captured. It fails if the
	// order was already paid.
	CancelOrder(ctx context.Context, orderRef string) error
}

// WebhookEvent is a gateway-pushed notification that a payment was captured.
type WebhookEvent struct {
	Type      string
	BookingID string
	Kind      models.PaymentKind
	Callback  models.PaymentCallback
}

// Succeeded reports whether the event confirms a captured payment.
func (e *WebhookEvent) Succeeded() bool {
	return e.Type == EventPaymentSucceeded
}

const EventPaymentSucceeded = "payment_intent.succeeded"

// WebhookParser authenticates and decodes gateway webhooks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
