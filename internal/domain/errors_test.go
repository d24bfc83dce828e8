package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := NewError(FailInvalidModelID, "rejected by upstream").WithModelID("M1")
	got := err.Error()
	want := "invalid_model_id: rejected by upstream (model_id=M1)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := NewError(FailToken, "idp unreachable")
	wrapped := fmt.Errorf("health probe: %w", inner)

	kind, ok := KindOf(wrapped)
	if !ok || kind != FailToken {
		t.Errorf("KindOf() = %v, %v; want %v, true", kind, ok, FailToken)
	}
	if !IsKind(wrapped, FailToken) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(wrapped, FailInference) {
		t.Error("IsKind() matched wrong kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf() matched a non-pipeline error")
	}
}

func TestAttachModelID(t *testing.T) {
	err := fmt.Errorf("completion: %w", NewError(FailModelTimeout, ""))
	err = AttachModelID(err, "M1")

	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatal("expected PipelineError in chain")
	}
	if pe.ModelID != "M1" {
		t.Errorf("ModelID = %q, want %q", pe.ModelID, "M1")
	}

	// An already-attached model id is not overwritten.
	err = AttachModelID(err, "M2")
	if pe.ModelID != "M1" {
		t.Errorf("ModelID overwritten to %q", pe.ModelID)
	}
}

func TestFailKindAudience(t *testing.T) {
	tests := []struct {
		kind FailKind
		want Audience
	}{
		{FailKeyNotFound, AudienceAdmin},
		{FailInstanceDeleted, AudienceAdmin},
		{FailHAPFilter, AudienceUser},
		{FailTrialExpired, AudienceUser},
		{FailCloudflare, AudienceInfra},
		{FailModelTimeout, AudienceInfra},
		{FailCorrelation, AudienceInfra},
	}
	for _, tt := range tests {
		if got := tt.kind.Audience(); got != tt.want {
			t.Errorf("%s.Audience() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestPlanMembershipActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		plan PlanMembership
		want bool
	}{
		{"no expiry", PlanMembership{Name: "trial of 90 days"}, true},
		{"future expiry", PlanMembership{ExpiresAt: &future}, true},
		{"expired", PlanMembership{ExpiresAt: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Active(now); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserIdentityHasActivePlan(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Minute)
	user := &UserIdentity{
		UserID: "u1",
		Plans: []PlanMembership{
			{Name: "trial of 90 days", ExpiresAt: &expired},
			{Name: "enterprise"},
		},
	}

	if user.HasActivePlan("trial of 90 days", now) {
		t.Error("expired trial reported active")
	}
	if !user.HasActivePlan("enterprise", now) {
		t.Error("open-ended plan reported inactive")
	}

	var nilUser *UserIdentity
	if nilUser.HasActivePlan("enterprise", now) {
		t.Error("nil user reported an active plan")
	}
}
