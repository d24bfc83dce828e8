package credentials

import (
	"context"
	"errors"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Secret suffixes under which per-tenant values are stored.
const (
	SuffixAPIKey  = "api_key"
	SuffixModelID = "model_id"
)

// ErrSecretNotFound is returned by Store implementations when a tenant has
// no value under the requested suffix.
var ErrSecretNotFound = errors.New("secret not found")

// Secret is a value retrieved from the secret store.
type Secret struct {
	Value string
}

// Store is the per-tenant secret store consumed by the resolver. The
// production implementation lives outside the core; adapters for local use
// are under internal/adapters/secrets.
type Store interface {
	// Get returns the secret for (tenant, suffix), or ErrSecretNotFound.
	Get(ctx context.Context, tenant domain.TenantID, suffix string) (*Secret, error)

	// Exists reports whether a secret exists without fetching its value.
	Exists(ctx context.Context, tenant domain.TenantID, suffix string) (bool, error)
}
