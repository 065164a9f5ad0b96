package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("checkpoint not found")
	ErrExists       = errors.New("checkpoint already exists")
	ErrCorrupt      = errors.New("checkpoint corrupt")
	ErrMissingStage = errors.New("missing precomputed stage")
)

// Store is a write-once key/blob store. Put on an existing key returns
// ErrExists and leaves the stored blob untouched; Get on an absent key
// returns ErrNotFound.
type Store interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

type Config struct {
	Backend string `toml:"backend"` // memory, file, etcd, redis, postgres

	Dir string `toml:"dir"`

	EtcdEndpoints   []string      `toml:"etcd_endpoints"`
	EtcdDialTimeout time.Duration `toml:"etcd_dial_timeout"`
	EtcdPrefix      string        `toml:"etcd_prefix"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	PostgresDSN   string `toml:"postgres_dsn"`
	PostgresTable string `toml:"postgres_table"`
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "etcd":
		return NewEtcdStore(EtcdConfig{
			Endpoints:   cfg.EtcdEndpoints,
			DialTimeout: cfg.EtcdDialTimeout,
			Prefix:      cfg.EtcdPrefix,
		})
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "postgres":
		return OpenPostgresStore(ctx, cfg.PostgresDSN, cfg.PostgresTable)
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
}
