// Package redis is a Redis-backed secret store for multi-node deployments
// that share credentials through an existing Redis instance.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// keyPrefix namespaces secret keys away from other users of the instance.
const keyPrefix = "wca:secret"

// Store reads per-tenant secrets from Redis.
type Store struct {
	client *redis.Client
}

var _ credentials.Store = (*Store)(nil)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client, for tests and shared pools.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func secretKey(tenant domain.TenantID, suffix string) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, tenant, suffix)
}

// Set stores or replaces the secret for (tenant, suffix).
func (s *Store) Set(ctx context.Context, tenant domain.TenantID, suffix, value string) error {
	if err := s.client.Set(ctx, secretKey(tenant, suffix), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Delete removes the secret for (tenant, suffix).
func (s *Store) Delete(ctx context.Context, tenant domain.TenantID, suffix string) error {
	if err := s.client.Del(ctx, secretKey(tenant, suffix)).Err(); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tenant domain.TenantID, suffix string) (*credentials.Secret, error) {
	value, err := s.client.Get(ctx, secretKey(tenant, suffix)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, credentials.ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	return &credentials.Secret{Value: value}, nil
}

func (s *Store) Exists(ctx context.Context, tenant domain.TenantID, suffix string) (bool, error) {
	n, err := s.client.Exists(ctx, secretKey(tenant, suffix)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check secret: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
