package models

import "time"

// Notification is a push message addressed to a customer or provider.
type Notification struct {
	ID        string            `json:"id"`
	Recipient Actor             `json:"recipient"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}

// LifecycleEvent is published on every applied transition.
type LifecycleEvent struct {
	Event      string        `json:"event"`
	Version    int           `json:"version"`
	OccurredAt string        `json:"occurred_at"`
	BookingID  string        `json:"booking_id"`
	CustomerID string        `json:"customer_id"`
	ProviderID string        `json:"provider_id,omitempty"`
	From       BookingStatus `json:"from"`
	To         BookingStatus `json:"to"`
	Actor      string        `json:"actor"`
	Revision   int64         `json:"revision"`
}
