package providerRepo

import (
	"context"
	"errors"

	"fieldhand/models"
)

// ErrNotFound is returned when no provider has the requested id.
var ErrNotFound = errors.New("provider not found")

// ProviderRepository defines provider data access needed for assignment.
type ProviderRepository interface {
	// GetByID retrieves a provider by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Provider, error)
	// Upsert inserts or replaces a provider record.
	Upsert(ctx context.Context, provider *models.Provider) error
	// ListAvailable returns available providers offering categoryID, best rated first.
	ListAvailable(ctx context.Context, categoryID string, limit int) ([]models.Provider, error)
	// Claim atomically marks the provider busy with bookingID. It returns
	// false when the provider is already busy with another booking.
	Claim(ctx context.Context, providerID, bookingID string) (bool, error)
	// Release frees the provider if it is still held by bookingID.
	Release(ctx context.Context, providerID, bookingID string) error
	// RecordRating adds one rating to the provider aggregate.
	RecordRating(ctx context.Context, providerID string, rating int) error
}
