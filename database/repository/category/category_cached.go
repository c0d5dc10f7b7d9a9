package categoryRepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldhand/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Cache is the part of the redis client the category cache uses.
// *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedCategoryRepo is a redis read-through cache in front of another repository.
// Cache failures fall back to the backing store.
type CachedCategoryRepo struct {
	next   CategoryRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCategoryRepo(next CategoryRepository, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedCategoryRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCategoryRepo{next: next, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(id string) string {
	return fmt.Sprintf("category:%s", id)
}

func (r *CachedCategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	raw, err := r.cache.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var category models.Category
		if jsonErr := json.Unmarshal(raw, &category); jsonErr == nil {
			return &category, nil
		}
		r.logger.Warn("category cache entry unreadable", zap.String("categoryId", id))
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("category cache read failed", zap.String("categoryId", id), zap.Error(err))
	}

	category, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(category); err == nil {
		if err := r.cache.Set(ctx, cacheKey(id), data, r.ttl).Err(); err != nil {
			r.logger.Warn("category cache write failed", zap.String("categoryId", id), zap.Error(err))
		}
	}
	return category, nil
}

func (r *CachedCategoryRepo) List(ctx context.Context) ([]models.Category, error) {
	return r.next.List(ctx)
}

// Upsert writes through and drops the cached entry.
func (r *CachedCategoryRepo) Upsert(ctx context.Context, category *models.Category) error {
	if err := r.next.Upsert(ctx, category); err != nil {
		return err
	}
	if err := r.cache.Del(ctx, cacheKey(category.ID)).Err(); err != nil {
		r.logger.Warn("category cache invalidation failed", zap.String("categoryId", category.ID), zap.Error(err))
	}
	return nil
}
