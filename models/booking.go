package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusStarted    BookingStatus = "started"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusRefunded   BookingStatus = "refunded"
)

var knownStatuses = map[BookingStatus]bool{
	StatusPending:    true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusStarted:    true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusRefunded:   true,
}

// IsValid reports whether s is a recognised booking status.
func (s BookingStatus) IsValid() bool {
	return knownStatuses[s]
}

// PaymentStatus tracks one payment leg (initial fee or final amount).
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// RefundStatus tracks the refund workflow of a booking.
type RefundStatus string

const (
	RefundNone       RefundStatus = "none"
	RefundRequested  RefundStatus = "requested"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

// CancelReasonPaymentExpired is set by the expiry sweep.
const CancelReasonPaymentExpired = "payment_expired"

// PaymentLeg holds the gateway references for one charge of a booking.
type PaymentLeg struct {
	OrderRef    string        `bson:"orderRef,omitempty" json:"orderRef,omitempty"`
	PaymentID   string        `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Status      PaymentStatus `bson:"status" json:"status"`
	RequestedAt *time.Time    `bson:"requestedAt,omitempty" json:"requestedAt,omitempty"`
	PaidAt      *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// Booking is the system-of-record entity for a single service request.
// Amounts are stored in minor currency units.
type Booking struct {
	ID         string        `bson:"id" json:"id"`
	CustomerID string        `bson:"customerId" json:"customerId"`
	CategoryID string        `bson:"categoryId" json:"categoryId"`
	ProviderID *string       `bson:"providerId" json:"providerId"`
	Status     BookingStatus `bson:"status" json:"status"`
	Version    int64         `bson:"version" json:"version"`

	ScheduledAt time.Time `bson:"scheduledAt" json:"scheduledAt"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`

	Currency       string     `bson:"currency" json:"currency"`
	InitialAmount  int64      `bson:"initialAmount" json:"initialAmount"`
	FinalAmount    *int64     `bson:"finalAmount,omitempty" json:"finalAmount,omitempty"`
	InitialPayment PaymentLeg `bson:"initialPayment" json:"initialPayment"`
	FinalPayment   PaymentLeg `bson:"finalPayment" json:"finalPayment"`

	RefundStatus RefundStatus `bson:"refundStatus" json:"refundStatus"`
	RefundAmount int64        `bson:"refundAmount" json:"refundAmount"`
	RefundID     string       `bson:"refundId,omitempty" json:"refundId,omitempty"`
	RefundError  string       `bson:"refundError,omitempty" json:"refundError,omitempty"`

	IsRated  bool   `bson:"isRated" json:"isRated"`
	Rating   int    `bson:"rating,omitempty" json:"rating,omitempty"`
	Feedback string `bson:"feedback,omitempty" json:"feedback,omitempty"`

	CancelReason string    `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CancelledBy  ActorKind `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
}

// HasProvider reports whether a provider has been bound to the booking.
func (b *Booking) HasProvider() bool {
	return b.ProviderID != nil && *b.ProviderID != ""
}

// AssignedTo reports whether providerID is the bound provider.
func (b *Booking) AssignedTo(providerID string) bool {
	return b.HasProvider() && *b.ProviderID == providerID
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.ProviderID != nil {
		p := *b.ProviderID
		c.ProviderID = &p
	}
	if b.FinalAmount != nil {
		f := *b.FinalAmount
		c.FinalAmount = &f
	}
	c.InitialPayment = b.InitialPayment.clone()
	c.FinalPayment = b.FinalPayment.clone()
	return &c
}

func (l PaymentLeg) clone() PaymentLeg {
	c := l
	if l.RequestedAt != nil {
		t := *l.RequestedAt
		c.RequestedAt = &t
	}
	if l.PaidAt != nil {
		t := *l.PaidAt
		c.PaidAt = &t
	}
	return c
}

// BookingFilter narrows read-only listings used by polling clients.
type BookingFilter struct {
	CustomerID string
	ProviderID string
	Statuses   []BookingStatus
	Limit      int
}

// PaymentWindow is the client-visible view of the initial-payment deadline.
type PaymentWindow struct {
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Payable          bool      `json:"payable"`
}
