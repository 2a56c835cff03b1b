package common

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mitoc/member/internal/config"
	"mitoc/member/internal/logging"
)

// NewRedisClient connects to the redis instance backing the notification
// retry queue. A failed ping is logged but the client is still returned;
// the pool reconnects on its own.
func NewRedisClient(cfg *config.Config) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.Error("Failed to ping redis", "addr", addr, "error", err.Error())
		return client
	}

	logging.Info("Connected to redis", "addr", addr)
	return client
}
