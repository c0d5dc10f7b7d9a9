package categoryRepo

import (
	"context"
	"sort"
	"sync"

	"fieldhand/models"
)

// MemoryCategoryRepo keeps categories in process memory.
type MemoryCategoryRepo struct {
	mu         sync.RWMutex
	categories map[string]models.Category
}

func NewMemoryCategoryRepo(seed ...models.Category) *MemoryCategoryRepo {
	r := &MemoryCategoryRepo{categories: make(map[string]models.Category)}
	for _, c := range seed {
		r.categories[c.ID] = c
	}
	return r
}

func (r *MemoryCategoryRepo) GetByID(_ context.Context, id string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCategoryRepo) List(_ context.Context) ([]models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Category{}
	for _, c := range r.categories {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryCategoryRepo) Upsert(_ context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.categories[category.ID] = *category
	return nil
}
