package credentials

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

type fakeStore struct {
	secrets map[string]string // "tenant/suffix" -> value
	err     error

	gets   int
	exists int
}

func (s *fakeStore) key(t domain.TenantID, suffix string) string {
	return fmt.Sprintf("%d/%s", t, suffix)
}

func (s *fakeStore) Get(_ context.Context, t domain.TenantID, suffix string) (*Secret, error) {
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.secrets[s.key(t, suffix)]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return &Secret{Value: v}, nil
}

func (s *fakeStore) Exists(_ context.Context, t domain.TenantID, suffix string) (bool, error) {
	s.exists++
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.secrets[s.key(t, suffix)]
	return ok, nil
}

func storeWith(t domain.TenantID, pairs map[string]string) *fakeStore {
	s := &fakeStore{secrets: map[string]string{}}
	for suffix, v := range pairs {
		s.secrets[s.key(t, suffix)] = v
	}
	return s
}

func tenantPtr(id domain.TenantID) *domain.TenantID { return &id }

func trialUser(tenant *domain.TenantID) *domain.UserIdentity {
	expires := time.Now().Add(24 * time.Hour)
	return &domain.UserIdentity{
		UserID:   "11111111-2222-3333-4444-555555555555",
		TenantID: tenant,
		Plans: []domain.PlanMembership{
			{Name: DefaultTrialPlanName, StartedAt: time.Now().Add(-time.Hour), ExpiresAt: &expires},
		},
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	ctx := context.Background()
	tenant := tenantPtr(42)
	user := trialUser(tenant)

	store := storeWith(42, map[string]string{SuffixAPIKey: "stored-key"})
	cfg := Config{
		APIKeyOverride: "override-key",
		TrialEnabled:   true,
		TrialAPIKey:    "trial-key",
	}

	// All four sources present: the global override wins.
	r := NewResolver(cfg, store, nil)
	key, err := r.APIKey(ctx, user, tenant)
	if err != nil || key != "override-key" {
		t.Fatalf("APIKey() = %q, %v; want override-key", key, err)
	}

	// Remove the override: tenant has a stored key, so the trial does not
	// apply and the store value wins.
	cfg.APIKeyOverride = ""
	r = NewResolver(cfg, store, nil)
	key, err = r.APIKey(ctx, user, tenant)
	if err != nil || key != "stored-key" {
		t.Fatalf("APIKey() = %q, %v; want stored-key", key, err)
	}

	// Remove the stored key: the trial default wins.
	r = NewResolver(cfg, storeWith(42, nil), nil)
	key, err = r.APIKey(ctx, user, tenant)
	if err != nil || key != "trial-key" {
		t.Fatalf("APIKey() = %q, %v; want trial-key", key, err)
	}

	// Remove the trial: nothing resolves.
	cfg.TrialEnabled = false
	r = NewResolver(cfg, storeWith(42, nil), nil)
	_, err = r.APIKey(ctx, user, tenant)
	if !domain.IsKind(err, domain.FailKeyNotFound) {
		t.Fatalf("APIKey() error = %v, want %s", err, domain.FailKeyNotFound)
	}
}

func TestAPIKeyTrialValueNeverFetched(t *testing.T) {
	store := storeWith(42, nil)
	cfg := Config{
		TrialEnabled: true,
		TrialAPIKey:  "trial-key",
		TrialModelID: "trial-model",
	}
	r := NewResolver(cfg, store, nil)

	tenant := tenantPtr(42)
	user := trialUser(tenant)

	key, err := r.APIKey(context.Background(), user, nil)
	if err != nil || key != "trial-key" {
		t.Fatalf("APIKey() = %q, %v; want trial-key", key, err)
	}
	model, err := r.ModelID(context.Background(), user, nil, "")
	if err != nil || model != "trial-model" {
		t.Fatalf("ModelID() = %q, %v; want trial-model", model, err)
	}

	if store.gets != 0 {
		t.Errorf("store.Get called %d times for a trial user, want 0", store.gets)
	}
	if store.exists == 0 {
		t.Error("expected at least one existence check")
	}
}

func TestAPIKeyExpiredTrialFallsThrough(t *testing.T) {
	tenant := tenantPtr(42)
	expired := time.Now().Add(-time.Minute)
	user := &domain.UserIdentity{
		UserID:   "u1",
		TenantID: tenant,
		Plans: []domain.PlanMembership{
			{Name: DefaultTrialPlanName, ExpiresAt: &expired},
		},
	}

	cfg := Config{TrialEnabled: true, TrialAPIKey: "trial-key"}
	r := NewResolver(cfg, storeWith(42, map[string]string{SuffixAPIKey: "stored-key"}), nil)

	key, err := r.APIKey(context.Background(), user, nil)
	if err != nil || key != "stored-key" {
		t.Fatalf("APIKey() = %q, %v; want stored-key", key, err)
	}
}

func TestAPIKeyUserTenantSubstitution(t *testing.T) {
	user := &domain.UserIdentity{UserID: "u1", TenantID: tenantPtr(7)}
	r := NewResolver(Config{}, storeWith(7, map[string]string{SuffixAPIKey: "k7"}), nil)

	key, err := r.APIKey(context.Background(), user, nil)
	if err != nil || key != "k7" {
		t.Fatalf("APIKey() = %q, %v; want k7", key, err)
	}
}

func TestAPIKeyNoTenant(t *testing.T) {
	r := NewResolver(Config{}, storeWith(7, nil), nil)
	_, err := r.APIKey(context.Background(), &domain.UserIdentity{UserID: "u1"}, nil)
	if !domain.IsKind(err, domain.FailKeyNotFound) {
		t.Fatalf("APIKey() error = %v, want %s", err, domain.FailKeyNotFound)
	}
}

func TestAPIKeyStoreErrorPropagates(t *testing.T) {
	store := &fakeStore{err: errors.New("vault sealed")}
	r := NewResolver(Config{}, store, nil)

	_, err := r.APIKey(context.Background(), nil, tenantPtr(1))
	if !domain.IsKind(err, domain.FailSecretStore) {
		t.Fatalf("APIKey() error = %v, want %s", err, domain.FailSecretStore)
	}
}

func TestModelIDPrecedence(t *testing.T) {
	ctx := context.Background()
	tenant := tenantPtr(42)
	user := &domain.UserIdentity{UserID: "u1", TenantID: tenant}

	store := storeWith(42, map[string]string{SuffixModelID: "stored-model"})

	// Requested id wins over the global override and the store.
	r := NewResolver(Config{ModelIDOverride: "fleet-model"}, store, nil)
	model, err := r.ModelID(ctx, user, tenant, "my-model")
	if err != nil || model != "my-model" {
		t.Fatalf("ModelID() = %q, %v; want my-model", model, err)
	}

	// Global override beats the store.
	model, err = r.ModelID(ctx, user, tenant, "")
	if err != nil || model != "fleet-model" {
		t.Fatalf("ModelID() = %q, %v; want fleet-model", model, err)
	}

	// Store is the last resort.
	r = NewResolver(Config{}, store, nil)
	model, err = r.ModelID(ctx, user, tenant, "")
	if err != nil || model != "stored-model" {
		t.Fatalf("ModelID() = %q, %v; want stored-model", model, err)
	}

	// Nothing stored.
	r = NewResolver(Config{}, storeWith(42, nil), nil)
	_, err = r.ModelID(ctx, user, tenant, "")
	if !domain.IsKind(err, domain.FailModelIDNotFound) {
		t.Fatalf("ModelID() error = %v, want %s", err, domain.FailModelIDNotFound)
	}
}

func TestModelIDTrialBeatsRequested(t *testing.T) {
	tenant := tenantPtr(42)
	user := trialUser(tenant)
	cfg := Config{TrialEnabled: true, TrialModelID: "trial-model"}
	r := NewResolver(cfg, storeWith(42, nil), nil)

	model, err := r.ModelID(context.Background(), user, tenant, "requested-model")
	if err != nil || model != "trial-model" {
		t.Fatalf("ModelID() = %q, %v; want trial-model", model, err)
	}
}

func TestModelIDTenantlessTrialUser(t *testing.T) {
	user := trialUser(nil)
	cfg := Config{TrialEnabled: true, TrialModelID: "trial-model"}
	r := NewResolver(cfg, storeWith(42, nil), nil)

	model, err := r.ModelID(context.Background(), user, nil, "")
	if err != nil || model != "trial-model" {
		t.Fatalf("ModelID() = %q, %v; want trial-model", model, err)
	}
}

func TestModelIDNoTenantNoOverride(t *testing.T) {
	r := NewResolver(Config{}, storeWith(42, nil), nil)
	_, err := r.ModelID(context.Background(), &domain.UserIdentity{UserID: "u1"}, nil, "")
	if !domain.IsKind(err, domain.FailNoDefaultModelID) {
		t.Fatalf("ModelID() error = %v, want %s", err, domain.FailNoDefaultModelID)
	}
}

func TestNilStoreResolvesFromConfigOnly(t *testing.T) {
	// The on-prem shape: credentials come from process configuration, no
	// secret store, no trials.
	cfg := Config{APIKeyOverride: "K1", ModelIDOverride: "granite-8b"}
	r := NewResolver(cfg, nil, nil)

	key, err := r.APIKey(context.Background(), nil, nil)
	if err != nil || key != "K1" {
		t.Fatalf("APIKey() = %q, %v; want K1", key, err)
	}
	model, err := r.ModelID(context.Background(), nil, tenantPtr(1), "")
	if err != nil || model != "granite-8b" {
		t.Fatalf("ModelID() = %q, %v; want granite-8b", model, err)
	}
}
