package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dailyrush:"

// Store is the local cache contract. It is synchronous and failures never
// escape its boundary: a broken backend behaves like an empty cache.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) bool
	Remove(key string)
}

type redisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisStore wraps a Redis client as a local cache store.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{
		rdb:     rdb,
		timeout: 2 * time.Second,
	}
}

func (s *redisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	value, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] get %s failed: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

func (s *redisStore) Set(key string, value []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.rdb.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		log.Printf("[Cache] set %s failed: %v", key, err)
		return false
	}
	return true
}

func (s *redisStore) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		log.Printf("[Cache] remove %s failed: %v", key, err)
	}
}
