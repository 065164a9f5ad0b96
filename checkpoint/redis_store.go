package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps checkpoints as redis strings: {prefix}{key}.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisStoreWithClient(client, config.Prefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "robustroute:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Put(ctx context.Context, key string, blob []byte) error {
	ok, err := s.client.SetNX(ctx, s.prefix+key, blob, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", key, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", key, err)
	}
	return blob, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
