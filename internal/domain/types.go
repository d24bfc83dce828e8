// Package domain holds the canonical types shared by the pipeline core:
// tenant identity, request envelopes, operation inputs/outputs, and the
// failure taxonomy.
package domain

import (
	"encoding/json"
	"time"
)

// TenantID identifies a paying organization. It is opaque to the core;
// absence is modeled with a nil pointer.
type TenantID int64

// PlanMembership records a user's membership in a named plan.
type PlanMembership struct {
	Name      string
	StartedAt time.Time

	// ExpiresAt is nil for plans without an expiry.
	ExpiresAt *time.Time
}

// Active reports whether the plan is active at the given instant.
// A plan with no expiry is always active.
func (p PlanMembership) Active(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// UserIdentity is the authenticated caller as produced by the auth layer.
// The core reads it and never mutates it.
type UserIdentity struct {
	UserID             string
	TenantID           *TenantID
	Plans              []PlanMembership
	CommercialOverride bool
}

// HasActivePlan reports whether the user holds an active membership in the
// named plan.
func (u *UserIdentity) HasActivePlan(name string, now time.Time) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Plans {
		if p.Name == name && p.Active(now) {
			return true
		}
	}
	return false
}

// Credentials is the resolved API key and model id for a single request.
// Instances live for one call and must never be logged or persisted.
type Credentials struct {
	APIKey  string
	ModelID string
}

// Envelope carries the per-request metadata common to every operation.
// CorrelationID, when non-empty, is round-tripped as the X-Request-ID
// header and verified against the response echo.
type Envelope struct {
	CorrelationID   string
	TenantID        *TenantID
	User            *UserIdentity
	ModelIDOverride string
}

// CompletionRequest asks for a code completion of Prompt within Context.
type CompletionRequest struct {
	Envelope

	Context string
	Prompt  string
}

// CompletionResponse is the completion result surfaced to the caller.
type CompletionResponse struct {
	Predictions []string `json:"predictions"`
	ModelID     string   `json:"model_id"`
}

// ContentMatchRequest asks for attribution matches for an ordered sequence
// of suggestions.
type ContentMatchRequest struct {
	Envelope

	Suggestions []string
}

// ContentMatchResponse carries the raw match payload alongside the model id
// that produced it.
type ContentMatchResponse struct {
	ModelID string
	Matches json.RawMessage
}

// PlaybookGenerationRequest asks for a generated playbook, optionally from
// an outline.
type PlaybookGenerationRequest struct {
	Envelope

	Text          string
	CustomPrompt  string
	Outline       string
	CreateOutline bool
	GenerationID  string
}

// PlaybookWarning is an advisory attached to a generated playbook.
type PlaybookWarning struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// PlaybookGenerationResponse is the generation result after any post-processing.
type PlaybookGenerationResponse struct {
	Playbook string
	Outline  string
	Warnings []PlaybookWarning
}

// PlaybookExplanationRequest asks for a natural-language explanation of an
// existing playbook.
type PlaybookExplanationRequest struct {
	Envelope

	Content       string
	CustomPrompt  string
	ExplanationID string
}

// Subsystem status values reported by the health probe.
const (
	HealthOK          = "ok"
	HealthUnavailable = "unavailable"
)

// HealthSummary reports per-subsystem availability as observed by the
// health probe.
type HealthSummary struct {
	Tokens string `json:"tokens"`
	Models string `json:"models"`
}

// Healthy reports whether every subsystem probe succeeded.
func (h HealthSummary) Healthy() bool {
	return h.Tokens == HealthOK && h.Models == HealthOK
}
