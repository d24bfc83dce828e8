package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/classify"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// GeneratePlaybook requests a generated playbook, optionally creating an
// outline first. Free-text fields pass through the anonymizer when the
// tenant's policy requires it, and the result runs through the lint
// post-processor when one is configured.
func (p *Pipeline) GeneratePlaybook(ctx context.Context, req domain.PlaybookGenerationRequest) (*domain.PlaybookGenerationResponse, error) {
	if !p.Supports(OpPlaybookGeneration) {
		return nil, domain.ErrUnsupportedOperation
	}
	if p.variant == VariantDummy {
		return p.dummyGeneratePlaybook(ctx, req)
	}

	creds, err := p.resolve(ctx, req.Envelope)
	if err != nil {
		return nil, err
	}

	payload := wca.PlaybookGenerationRequest{
		ModelID:       creds.ModelID,
		Text:          p.scrub(req.TenantID, req.Text),
		CreateOutline: req.CreateOutline,
		Outline:       p.scrub(req.TenantID, req.Outline),
		CustomPrompt:  terminateCustomPrompt(p.scrub(req.TenantID, req.CustomPrompt)),
	}

	resp, err := p.roundTrip(ctx, callSpec{
		op:        OpPlaybookGeneration,
		path:      wca.PathPlaybookGeneration,
		payload:   payload,
		apiKey:    creds.APIKey,
		modelID:   creds.ModelID,
		requestID: req.CorrelationID,
		eventID:   req.GenerationID,
		userUUID:  p.userUUID(req.Envelope),
		timeout:   p.timeoutFor(1),
		classify:  classify.Completion,
	})
	if err != nil {
		return nil, err
	}

	var body wca.PlaybookGenerationResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, domain.NewError(domain.FailInference, "malformed generation body").
			WithModelID(creds.ModelID).
			WithCause(err)
	}

	playbook := body.Playbook
	if p.linter != nil {
		linted, err := p.linter.Run(ctx, playbook)
		if err != nil {
			// Lint is advisory; the unprocessed playbook is still valid.
			p.logger.WarnContext(ctx, "playbook lint post-processing failed",
				slog.String("error", err.Error()))
		} else {
			playbook = linted
		}
	}

	out := &domain.PlaybookGenerationResponse{
		Playbook: playbook,
		Outline:  body.Outline,
	}
	for _, w := range body.Warnings {
		out.Warnings = append(out.Warnings, domain.PlaybookWarning(w))
	}
	return out, nil
}

// ExplainPlaybook requests a natural-language explanation of a playbook.
func (p *Pipeline) ExplainPlaybook(ctx context.Context, req domain.PlaybookExplanationRequest) (string, error) {
	if !p.Supports(OpPlaybookExplanation) {
		return "", domain.ErrUnsupportedOperation
	}
	if p.variant == VariantDummy {
		return p.dummyExplainPlaybook(ctx, req)
	}

	creds, err := p.resolve(ctx, req.Envelope)
	if err != nil {
		return "", err
	}

	payload := wca.PlaybookExplanationRequest{
		ModelID:      creds.ModelID,
		Playbook:     p.scrub(req.TenantID, req.Content),
		CustomPrompt: terminateCustomPrompt(p.scrub(req.TenantID, req.CustomPrompt)),
	}

	resp, err := p.roundTrip(ctx, callSpec{
		op:        OpPlaybookExplanation,
		path:      wca.PathPlaybookExplanation,
		payload:   payload,
		apiKey:    creds.APIKey,
		modelID:   creds.ModelID,
		requestID: req.CorrelationID,
		eventID:   req.ExplanationID,
		userUUID:  p.userUUID(req.Envelope),
		timeout:   p.timeoutFor(1),
		classify:  classify.Completion,
	})
	if err != nil {
		return "", err
	}

	var body wca.PlaybookExplanationResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", domain.NewError(domain.FailInference, "malformed explanation body").
			WithModelID(creds.ModelID).
			WithCause(err)
	}
	return body.Content, nil
}

// terminateCustomPrompt guarantees a trailing newline on a non-empty custom
// prompt; the upstream template concatenation requires it.
func terminateCustomPrompt(prompt string) string {
	if prompt == "" || strings.HasSuffix(prompt, "\n") {
		return prompt
	}
	return prompt + "\n"
}
