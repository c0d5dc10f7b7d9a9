package providerRepo

import (
	"context"
	"sync"
	"time"

	"fieldhand/models"
)

// MemoryProviderRepo keeps providers in process memory.
type MemoryProviderRepo struct {
	mu        sync.Mutex
	providers map[string]*models.Provider
}

func NewMemoryProviderRepo(seed ...models.Provider) *MemoryProviderRepo {
	r := &MemoryProviderRepo{providers: make(map[string]*models.Provider)}
	for i := range seed {
		p := seed[i]
		r.providers[p.ID] = &p
	}
	return r
}

func (r *MemoryProviderRepo) GetByID(_ context.Context, id string) (*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyProvider(p)
	return &cp, nil
}

func (r *MemoryProviderRepo) Upsert(_ context.Context, provider *models.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := copyProvider(provider)
	r.providers[provider.ID] = &cp
	return nil
}

func (r *MemoryProviderRepo) ListAvailable(_ context.Context, categoryID string, limit int) ([]models.Provider, error) {
	r.mu.Lock()
	out := []models.Provider{}
	for _, p := range r.providers {
		if p.Available && offers(p, categoryID) {
			out = append(out, copyProvider(p))
		}
	}
	r.mu.Unlock()

	sortByRating(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryProviderRepo) Claim(_ context.Context, providerID, bookingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerID]
	if !ok {
		return false, nil
	}
	if !p.Available && p.CurrentBookingID != bookingID {
		return false, nil
	}
	p.Available = false
	p.CurrentBookingID = bookingID
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryProviderRepo) Release(_ context.Context, providerID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[providerID]; ok && p.CurrentBookingID == bookingID {
		p.Available = true
		p.CurrentBookingID = ""
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryProviderRepo) RecordRating(_ context.Context, providerID string, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerID]
	if !ok {
		return ErrNotFound
	}
	p.RatingSum += int64(rating)
	p.RatingCount++
	return nil
}

func offers(p *models.Provider, categoryID string) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

func copyProvider(p *models.Provider) models.Provider {
	cp := *p
	cp.CategoryIDs = append([]string(nil), p.CategoryIDs...)
	return cp
}
