package booking

import (
	"context"
	"errors"

	providerRepo "fieldhand/database/repository/provider"
	"fieldhand/models"

	"go.uber.org/zap"
)

const defaultCandidateLimit = 20

// AssignmentResolver binds providers to confirmed bookings. A binding holds
// only if the booking has no provider and the provider's availability claim
// succeeds; concurrent attempts on one booking yield exactly one winner.
type AssignmentResolver struct {
	engine         *Engine
	providers      providerRepo.ProviderRepository
	logger         *zap.Logger
	candidateLimit int
}

func NewAssignmentResolver(engine *Engine, providers providerRepo.ProviderRepository, logger *zap.Logger) *AssignmentResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentResolver{
		engine:         engine,
		providers:      providers,
		logger:         logger,
		candidateLimit: defaultCandidateLimit,
	}
}

// TryAssign picks the best available provider for the booking's category.
// ok is false when nobody could be bound yet; the sweep tries again later.
func (r *AssignmentResolver) TryAssign(ctx context.Context, bookingID string) (string, bool, error) {
	b, err := r.engine.Get(ctx, bookingID)
	if err != nil {
		return "", false, err
	}
	if b.HasProvider() {
		return "", false, ErrAlreadyAssigned
	}
	if b.Status != models.StatusConfirmed {
		return "", false, invalid(TriggerProviderAssigned, b.Status, "booking is not confirmed")
	}

	candidates, err := r.providers.ListAvailable(ctx, b.CategoryID, r.candidateLimit)
	if err != nil {
		return "", false, err
	}
	for _, c := range candidates {
		claimed, err := r.providers.Claim(ctx, c.ID, bookingID)
		if err != nil {
			r.logger.Warn("Provider claim failed", zap.String("providerID", c.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if _, err := r.bind(ctx, b, c.ID, models.SystemActor()); err != nil {
			return "", false, err
		}
		r.logger.Info("Provider assigned",
			zap.String("bookingID", bookingID),
			zap.String("providerID", c.ID))
		return c.ID, true, nil
	}

	// Every candidate may have been taken by a concurrent attempt on this booking.
	fresh, err := r.engine.Get(ctx, bookingID)
	if err == nil && fresh.HasProvider() {
		return "", false, ErrAlreadyAssigned
	}
	r.logger.Debug("No provider available yet", zap.String("bookingID", bookingID))
	return "", false, nil
}

// AssignProvider binds a specific provider, as when a provider accepts the
// booking. Repeating it for the provider already bound is a no-op.
func (r *AssignmentResolver) AssignProvider(ctx context.Context, bookingID, providerID string, actor models.Actor) (*models.Booking, error) {
	b, err := r.engine.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.AssignedTo(providerID) {
		return b, nil
	}
	if b.HasProvider() {
		return nil, ErrAlreadyAssigned
	}
	if b.Status != models.StatusConfirmed {
		return nil, invalid(TriggerProviderAssigned, b.Status, "booking is not confirmed")
	}
	p, err := r.providers.GetByID(ctx, providerID)
	if errors.Is(err, providerRepo.ErrNotFound) {
		return nil, &NotFoundError{Resource: "provider", ID: providerID}
	}
	if err != nil {
		return nil, err
	}
	if !offersCategory(p, b.CategoryID) {
		return nil, invalid(TriggerProviderAssigned, b.Status, "provider does not offer this category")
	}

	claimed, err := r.providers.Claim(ctx, providerID, bookingID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, invalid(TriggerProviderAssigned, b.Status, "provider is not available")
	}
	return r.bind(ctx, b, providerID, actor)
}

// bind applies provider-assigned against the version read in b and gives the
// claim back when another attempt won.
func (r *AssignmentResolver) bind(ctx context.Context, b *models.Booking, providerID string, actor models.Actor) (*models.Booking, error) {
	version := b.Version
	updated, err := r.engine.Apply(ctx, b.ID, TriggerProviderAssigned, actor, Payload{
		ExpectedVersion: &version,
		ProviderID:      providerID,
	})
	if err == nil {
		return updated, nil
	}

	fresh, getErr := r.engine.Get(ctx, b.ID)
	if getErr == nil && fresh.AssignedTo(providerID) {
		// Same provider bound by a concurrent attempt; the claim is in use.
		if IsConflict(err) || IsInvalidTransition(err) {
			return nil, ErrAlreadyAssigned
		}
		return nil, err
	}
	if relErr := r.providers.Release(ctx, providerID, b.ID); relErr != nil {
		r.logger.Warn("Provider release after lost bind failed", zap.String("providerID", providerID), zap.Error(relErr))
	}
	if getErr == nil && fresh.HasProvider() {
		return nil, ErrAlreadyAssigned
	}
	return nil, err
}

func offersCategory(p *models.Provider, categoryID string) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}
