package checkpoint

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		Prefix:      "/robustroute/",
	}
}

// EtcdStore keeps checkpoints as etcd keys under a prefix.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

func NewEtcdStore(config EtcdConfig) (*EtcdStore, error) {
	def := DefaultEtcdConfig()
	if len(config.Endpoints) == 0 {
		config.Endpoints = def.Endpoints
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.Prefix == "" {
		config.Prefix = def.Prefix
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	log.Infof("EtcdStore: connected endpoints=%v prefix=%s", config.Endpoints, config.Prefix)
	return &EtcdStore{client: client, prefix: config.Prefix}, nil
}

// Put succeeds only when the key has never been created.
func (s *EtcdStore) Put(ctx context.Context, key string, blob []byte) error {
	k := s.prefix + key
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(k), "=", 0)).
		Then(clientv3.OpPut(k, string(blob))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to put checkpoint %s: %w", key, err)
	}
	if !resp.Succeeded {
		return ErrExists
	}
	return nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (s *EtcdStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
