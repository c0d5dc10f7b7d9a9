package models

// PaymentKind distinguishes the two charges of a booking.
type PaymentKind string

const (
	PaymentKindInitial PaymentKind = "initial"
	PaymentKindFinal   PaymentKind = "final"
)

// PaymentCallback is the signed payload the client relays after checkout.
type PaymentCallback struct {
	OrderRef  string `json:"orderRef" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature"`
}

// OrderRequest asks the gateway for a new payment order.
type OrderRequest struct {
	BookingID      string
	Kind           PaymentKind
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// Order is the gateway's reply to an OrderRequest.
type Order struct {
	OrderRef     string `json:"orderRef"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Verification is the gateway's authoritative view of a captured payment.
type Verification struct {
	OrderRef  string
	PaymentID string
	Amount    int64
	Currency  string
	BookingID string
}

// RefundRequest asks the gateway to return money for a captured order.
type RefundRequest struct {
	BookingID      string
	OrderRef       string
	PaymentID      string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// RefundResult is the gateway's reply to a refund.
type RefundResult struct {
	RefundID string
	Status   string
}
