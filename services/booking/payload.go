package booking

import (
	"time"

	"fieldhand/models"
)

// Payload carries the trigger-specific inputs of Apply. Only the fields the
// trigger reads need to be set.
type Payload struct {
	// ExpectedVersion pins the version the caller read. Nil means "the version loaded by Apply".
	ExpectedVersion *int64

	Callback     *models.PaymentCallback
	ProviderID   string
	FinalAmount  int64
	Rating       int
	Feedback     string
	Reason       string
	RefundAmount int64
	RefundID     string
	RefundError  string
}

// CreateRequest is the input of Engine.Create. Amounts are minor units.
type CreateRequest struct {
	CustomerID    string
	CategoryID    string
	ScheduledAt   time.Time
	InitialAmount int64
}

// Settings are the time windows and defaults the engine enforces.
type Settings struct {
	PaymentWindow      time.Duration
	ProviderEditWindow time.Duration
	// RefundStaleAfter is how long a refund may sit in requested or
	// processing before the sweep queues it again.
	RefundStaleAfter time.Duration
	Currency         string
}

func DefaultSettings() Settings {
	return Settings{
		PaymentWindow:      24 * time.Hour,
		ProviderEditWindow: 12 * time.Hour,
		RefundStaleAfter:   15 * time.Minute,
		Currency:           "inr",
	}
}
