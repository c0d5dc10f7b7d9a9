package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSettings selects one logical database on the shared Redis instance.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient dials Redis and fails fast when the server does not answer
// within two seconds. Category lookups and the task queue use separate DBs.
func NewRedisClient(ctx context.Context, s RedisSettings) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr,
		Password: s.Password,
		DB:       s.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s db %d: %w", s.Addr, s.DB, err)
	}
	return client, nil
}
