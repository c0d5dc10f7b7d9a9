package bookingRepo

import (
	"context"
	"errors"
	"time"

	"fieldhand/models"
)

var (
	// ErrNotFound is returned when no booking has the requested id.
	ErrNotFound = errors.New("booking not found")
	// ErrVersionConflict is returned when the stored version differs from the expected one.
	ErrVersionConflict = errors.New("booking version conflict")
	// ErrDuplicate is returned when a booking id is inserted twice.
	ErrDuplicate = errors.New("booking already exists")
)

// BookingRepository is the system of record for bookings and their status history.
type BookingRepository interface {
	// Create inserts a new booking together with its first history entry.
	Create(ctx context.Context, booking *models.Booking, event models.StatusEvent) error
	// GetByID returns a copy of the stored booking or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// Update writes booking only if the stored version equals expectedVersion,
	// appends event, and sets booking.Version to expectedVersion+1.
	Update(ctx context.Context, booking *models.Booking, expectedVersion int64, event models.StatusEvent) error
	// List returns bookings matching filter, newest first.
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	// ListExpiredPending returns unpaid pending bookings created before cutoff, oldest first.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	// ListUnassignedConfirmed returns confirmed bookings still waiting for a provider.
	ListUnassignedConfirmed(ctx context.Context, limit int) ([]models.Booking, error)
	// ListStaleRefunds returns bookings whose refund is requested or processing
	// and that have not changed since before, oldest first.
	ListStaleRefunds(ctx context.Context, before time.Time, limit int) ([]models.Booking, error)
	// History returns the status events of a booking in version order.
	History(ctx context.Context, bookingID string) ([]models.StatusEvent, error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
