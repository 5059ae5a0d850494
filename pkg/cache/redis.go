package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/iufc-admission-api/pkg/config"
)

// NewRedis returns a Redis client identified by clientName once it answers a
// ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig, clientName string) (*redis.Client, error) {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		DialTimeout:  dial,
		ReadTimeout:  dial,
		WriteTimeout: dial,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
	}

	return client, nil
}
