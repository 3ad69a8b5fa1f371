// Package redis keeps the persisted session in Redis, for deployments where
// the dashboard client runs in an ephemeral container.
package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
)

// DefaultPrefix namespaces keys written by this driver.
const DefaultPrefix = "dashcore:"

type Store struct {
	client *goredis.Client
	prefix string
}

// NewStore wraps an existing client. Keys are written as prefix+key.
func NewStore(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open dials addr and returns a Store owning the client.
func Open(addr, password string, db int, prefix string) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewStore(client, prefix)
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Set writes every value inside MULTI/EXEC.
func (s *Store) Set(ctx context.Context, values map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	return err
}

// Delete removes every key inside MULTI/EXEC.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, full...)
		return nil
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }

var _ store.Backend = (*Store)(nil)
