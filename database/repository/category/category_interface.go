package categoryRepo

import (
	"context"
	"errors"

	"fieldhand/models"
)

// ErrNotFound is returned when no category has the requested id.
var ErrNotFound = errors.New("category not found")

// CategoryRepository provides read access to service categories and their price bounds.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Upsert(ctx context.Context, category *models.Category) error
}
