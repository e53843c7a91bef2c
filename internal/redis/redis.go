package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Rdb *redis.Client

func InitRedis(reddisAddress string, redisUsername string, redisPassword string) *redis.Client {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     reddisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
	return Rdb
}

// Ping checks that the server answers within a second.
func Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return Rdb.Ping(ctx).Err()
}

func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := Rdb.Set(ctx, key, value, expiration).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to add key to redis")
		return err
	}
	return nil
}

// Get returns the string stored at key; a missing key is not an error.
func Get(ctx context.Context, key string) (string, bool, error) {
	v, err := Rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Cache adapts the shared client to a simple string cache.
type Cache struct{}

func (Cache) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		return "", false
	}
	return v, ok
}

func (Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return Set(ctx, key, value, ttl)
}
