package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldhand/models"
)

// MemoryBookingRepo is an in-process BookingRepository used by the memory
// store driver and by tests. Reads and writes work on copies.
type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]*models.Booking
	events   map[string][]models.StatusEvent
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		bookings: make(map[string]*models.Booking),
		events:   make(map[string][]models.StatusEvent),
	}
}

func (r *MemoryBookingRepo) Create(_ context.Context, booking *models.Booking, event models.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[booking.ID]; ok {
		return ErrDuplicate
	}
	r.bookings[booking.ID] = booking.Clone()
	r.events[booking.ID] = append(r.events[booking.ID], event)
	return nil
}

func (r *MemoryBookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepo) Update(_ context.Context, booking *models.Booking, expectedVersion int64, event models.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := booking.Clone()
	next.Version = expectedVersion + 1
	event.Version = next.Version
	r.bookings[booking.ID] = next
	r.events[booking.ID] = append(r.events[booking.ID], event)
	booking.Version = next.Version
	return nil
}

func (r *MemoryBookingRepo) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	statuses := make(map[models.BookingStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	out := r.collect(func(b *models.Booking) bool {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			return false
		}
		if filter.ProviderID != "" && !b.AssignedTo(filter.ProviderID) {
			return false
		}
		return len(statuses) == 0 || statuses[b.Status]
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, filter.Limit), nil
}

func (r *MemoryBookingRepo) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	out := r.collect(func(b *models.Booking) bool {
		return b.Status == models.StatusPending &&
			b.CreatedAt.Before(cutoff) &&
			b.InitialPayment.Status != models.PaymentPaid
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryBookingRepo) ListUnassignedConfirmed(_ context.Context, limit int) ([]models.Booking, error) {
	out := r.collect(func(b *models.Booking) bool {
		return b.Status == models.StatusConfirmed && !b.HasProvider()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryBookingRepo) ListStaleRefunds(_ context.Context, before time.Time, limit int) ([]models.Booking, error) {
	out := r.collect(func(b *models.Booking) bool {
		return (b.RefundStatus == models.RefundRequested || b.RefundStatus == models.RefundProcessing) &&
			b.UpdatedAt.Before(before)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryBookingRepo) History(_ context.Context, bookingID string) ([]models.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]models.StatusEvent, len(r.events[bookingID]))
	copy(events, r.events[bookingID])
	return events, nil
}

func (r *MemoryBookingRepo) collect(match func(*models.Booking) bool) []models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Booking{}
	for _, b := range r.bookings {
		if match(b) {
			out = append(out, *b.Clone())
		}
	}
	return out
}

func truncate(bookings []models.Booking, limit int) []models.Booking {
	limit = clampLimit(limit)
	if len(bookings) > limit {
		return bookings[:limit]
	}
	return bookings
}
