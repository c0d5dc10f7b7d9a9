package booking

import (
	"context"

	"fieldhand/models"
)

// EventPublisher fans lifecycle events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

// Notifier delivers push notifications about a booking.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// RefundQueue schedules a refund for asynchronous processing.
type RefundQueue interface {
	EnqueueRefund(ctx context.Context, bookingID string) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.LifecycleEvent) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Notification) error { return nil }

type noopRefundQueue struct{}

func (noopRefundQueue) EnqueueRefund(context.Context, string) error { return nil }
