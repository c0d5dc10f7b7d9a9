package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"fieldhand/models"

	"github.com/google/uuid"
)

// SandboxGateway is an in-process gateway for local runs and tests.
// Callbacks are authenticated with HMAC-SHA256 over "orderRef|paymentId".
type SandboxGateway struct {
	secret []byte

	mu        sync.Mutex
	orders    map[string]models.OrderRequest
	refunds   map[string]models.RefundResult
	cancelled map[string]bool
}

func NewSandboxGateway(secret string) *SandboxGateway {
	return &SandboxGateway{
		secret:    []byte(secret),
		orders:    make(map[string]models.OrderRequest),
		refunds:   make(map[string]models.RefundResult),
		cancelled: make(map[string]bool),
	}
}

// Sign returns the signature a sandbox checkout would hand back to the client.
func (g *SandboxGateway) Sign(orderRef, paymentID string) string {
	return g.sign([]byte(orderRef + "|" + paymentID))
}

func (g *SandboxGateway) sign(data []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *SandboxGateway) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("sandbox create order", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	ref := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if req.IdempotencyKey != "" {
		for existing, r := range g.orders {
			if r.IdempotencyKey == req.IdempotencyKey {
				ref = existing
				break
			}
		}
	}
	g.orders[ref] = req
	return &models.Order{OrderRef: ref, Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *SandboxGateway) Verify(ctx context.Context, callback models.PaymentCallback) (*models.Verification, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("sandbox verify", err)
	}
	expected := g.Sign(callback.OrderRef, callback.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(callback.Signature)) {
		return nil, ErrInvalidSignature
	}

	g.mu.Lock()
	order, ok := g.orders[callback.OrderRef]
	g.mu.Unlock()
	if !ok {
		return nil, ErrUnknownOrder
	}
	return &models.Verification{
		OrderRef:  callback.OrderRef,
		PaymentID: callback.PaymentID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		BookingID: order.BookingID,
	}, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("sandbox refund", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[req.OrderRef]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if req.Amount <= 0 || req.Amount > order.Amount {
		return nil, fmt.Errorf("refund amount %d outside captured amount %d", req.Amount, order.Amount)
	}
	if r, ok := g.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return &r, nil
	}
	r := models.RefundResult{RefundID: "rf_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Status: "succeeded"}
	if req.IdempotencyKey != "" {
		g.refunds[req.IdempotencyKey] = r
	}
	return &r, nil
}

// CancelOrder records the cancellation. A signed callback is the sandbox's
// only evidence of payment, so callbacks still verify afterwards, the same
// way a real capture can race a cancel.
func (g *SandboxGateway) CancelOrder(ctx context.Context, orderRef string) error {
	if err := ctx.Err(); err != nil {
		return classify("sandbox cancel order", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.orders[orderRef]; !ok {
		return ErrUnknownOrder
	}
	g.cancelled[orderRef] = true
	return nil
}

// Cancelled reports whether CancelOrder was called for orderRef.
func (g *SandboxGateway) Cancelled(orderRef string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled[orderRef]
}

type sandboxWebhook struct {
	Type      string `json:"type"`
	BookingID string `json:"bookingId"`
	Kind      string `json:"kind"`
	OrderRef  string `json:"orderRef"`
	PaymentID string `json:"paymentId"`
}

// SignWebhook returns the header value ParseWebhook expects for payload.
func (g *SandboxGateway) SignWebhook(payload []byte) string {
	return g.sign(payload)
}

func (g *SandboxGateway) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if !hmac.Equal([]byte(g.sign(payload)), []byte(signatureHeader)) {
		return nil, ErrInvalidSignature
	}
	var body sandboxWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode sandbox webhook: %w", err)
	}
	return &WebhookEvent{
		Type:      body.Type,
		BookingID: body.BookingID,
		Kind:      models.PaymentKind(body.Kind),
		Callback: models.PaymentCallback{
			OrderRef:  body.OrderRef,
			PaymentID: body.PaymentID,
			Signature: g.Sign(body.OrderRef, body.PaymentID),
		},
	}, nil
}
