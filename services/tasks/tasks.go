package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeExpirySweep = "booking:expiry-sweep"
	TypeRefund      = "booking:refund"
)

// RefundPayload identifies the booking whose queued refund should be processed.
type RefundPayload struct {
	BookingID string `json:"bookingId"`
}

// NewExpirySweepTask builds the periodic sweep. Unique keeps overlapping
// schedulers from piling up sweeps that would only race each other.
func NewExpirySweepTask(interval time.Duration) (*asynq.Task, []asynq.Option) {
	task := asynq.NewTask(TypeExpirySweep, nil)
	opts := []asynq.Option{
		asynq.Unique(interval),
		asynq.MaxRetry(0),
		asynq.Timeout(interval),
	}
	return task, opts
}

// NewRefundTask builds a refund task. Failures are recorded on the booking
// and re-requested by an admin, so the queue never retries. A duplicate
// delivery is harmless: the processor skips bookings with no requested refund.
func NewRefundTask(bookingID string) (*asynq.Task, []asynq.Option, error) {
	if bookingID == "" {
		return nil, nil, fmt.Errorf("NewRefundTask: empty booking id")
	}
	b, err := json.Marshal(RefundPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeRefund, b)
	return task, []asynq.Option{asynq.MaxRetry(0)}, nil
}

// ParseRefundPayload decodes a refund task payload.
func ParseRefundPayload(t *asynq.Task) (RefundPayload, error) {
	var p RefundPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid refund payload: %w", err)
	}
	if p.BookingID == "" {
		return p, fmt.Errorf("invalid refund payload: missing bookingId")
	}
	return p, nil
}
