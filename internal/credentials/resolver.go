// Package credentials resolves the API key and model id for a request by
// fusing a fleet-wide override, a time-limited trial default, and the
// per-tenant secret store. Precedence is fixed:
// global override > active-trial default > secret store > failure.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// DefaultTrialPlanName is the plan membership that marks a trial user.
const DefaultTrialPlanName = "trial of 90 days"

// Config holds the resolver's static inputs, loaded once at construction.
type Config struct {
	// APIKeyOverride forces a single fleet-wide API key when set.
	APIKeyOverride string

	// ModelIDOverride is the org-independent default model id.
	ModelIDOverride string

	TrialEnabled  bool
	TrialPlanName string
	TrialAPIKey   string
	TrialModelID  string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// Resolver answers the two credential questions for a request. It holds no
// per-request state and is safe for concurrent use.
type Resolver struct {
	cfg    Config
	store  Store // nil for variants without a secret store
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. store may be nil for variants that carry
// their credentials in process configuration.
func NewResolver(cfg Config, store Store, logger *slog.Logger, opts ...Option) *Resolver {
	if cfg.TrialPlanName == "" {
		cfg.TrialPlanName = DefaultTrialPlanName
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// APIKey resolves the API key for the request. tenant may be nil; the
// user's own tenant substitutes for it.
func (r *Resolver) APIKey(ctx context.Context, user *domain.UserIdentity, tenant *domain.TenantID) (string, error) {
	tenant = substituteTenant(user, tenant)

	if r.cfg.APIKeyOverride != "" {
		return r.cfg.APIKeyOverride, nil
	}

	if tenant == nil {
		return "", domain.NewError(domain.FailKeyNotFound, "no tenant to resolve an API key for")
	}

	if r.cfg.TrialEnabled && user != nil && user.TenantID != nil &&
		user.HasActivePlan(r.cfg.TrialPlanName, r.now()) {
		stored, err := r.hasStoredAPIKey(ctx, *tenant)
		if err != nil {
			return "", err
		}
		if !stored {
			return r.cfg.TrialAPIKey, nil
		}
	}

	secret, err := r.lookup(ctx, *tenant, SuffixAPIKey, domain.FailKeyNotFound)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// ModelID resolves the model id for the request. requested, when non-empty,
// is the caller's per-request override and wins over the org default but
// never over an active trial.
func (r *Resolver) ModelID(ctx context.Context, user *domain.UserIdentity, tenant *domain.TenantID, requested string) (string, error) {
	tenant = substituteTenant(user, tenant)

	if r.cfg.TrialEnabled && user != nil &&
		user.HasActivePlan(r.cfg.TrialPlanName, r.now()) {
		stored := false
		if tenant != nil {
			var err error
			stored, err = r.hasStoredAPIKey(ctx, *tenant)
			if err != nil {
				return "", err
			}
		}
		if !stored {
			return r.cfg.TrialModelID, nil
		}
	}

	if requested != "" {
		return requested, nil
	}

	if r.cfg.ModelIDOverride != "" {
		return r.cfg.ModelIDOverride, nil
	}

	if tenant == nil {
		return "", domain.NewError(domain.FailNoDefaultModelID, "user has no tenant and no model id override")
	}

	return r.lookup(ctx, *tenant, SuffixModelID, domain.FailModelIDNotFound)
}

func (r *Resolver) hasStoredAPIKey(ctx context.Context, tenant domain.TenantID) (bool, error) {
	if r.store == nil {
		return false, nil
	}
	ok, err := r.store.Exists(ctx, tenant, SuffixAPIKey)
	if err != nil {
		return false, storeError(err)
	}
	return ok, nil
}

func (r *Resolver) lookup(ctx context.Context, tenant domain.TenantID, suffix string, missing domain.FailKind) (string, error) {
	if r.store == nil {
		return "", domain.NewError(missing, fmt.Sprintf("no secret store configured for %s lookup", suffix))
	}
	secret, err := r.store.Get(ctx, tenant, suffix)
	if errors.Is(err, ErrSecretNotFound) {
		return "", domain.NewError(missing, fmt.Sprintf("tenant has no stored %s", suffix))
	}
	if err != nil {
		return "", storeError(err)
	}
	return secret.Value, nil
}

func storeError(err error) error {
	return domain.NewError(domain.FailSecretStore, "secret store unavailable").WithCause(err)
}

func substituteTenant(user *domain.UserIdentity, tenant *domain.TenantID) *domain.TenantID {
	if tenant == nil && user != nil {
		return user.TenantID
	}
	return tenant
}
