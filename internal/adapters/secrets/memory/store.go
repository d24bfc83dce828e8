// Package memory is an in-memory secret store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Store holds per-tenant secrets in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	secrets map[key]string
}

type key struct {
	tenant domain.TenantID
	suffix string
}

var _ credentials.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{secrets: make(map[key]string)}
}

// Set stores a secret value for (tenant, suffix), replacing any previous one.
func (s *Store) Set(tenant domain.TenantID, suffix, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key{tenant, suffix}] = value
}

// Delete removes the secret for (tenant, suffix) if present.
func (s *Store) Delete(tenant domain.TenantID, suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key{tenant, suffix})
}

func (s *Store) Get(_ context.Context, tenant domain.TenantID, suffix string) (*credentials.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[key{tenant, suffix}]
	if !ok {
		return nil, credentials.ErrSecretNotFound
	}
	return &credentials.Secret{Value: value}, nil
}

func (s *Store) Exists(_ context.Context, tenant domain.TenantID, suffix string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.secrets[key{tenant, suffix}]
	return ok, nil
}
