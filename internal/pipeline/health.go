package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/classify"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// healthProbePrompt is the canned input the probe completes against.
const healthProbePrompt = "---\n- hosts: all\n  tasks:\n  - name: install ssh\n"

// HealthProbe exercises the full stack with the reserved health credentials
// and a synthetic prompt. An InferenceFailure marks only the models
// subsystem unavailable; any other failure (a token failure in particular)
// means no model call could even be attempted, so both subsystems are
// reported down.
func (p *Pipeline) HealthProbe(ctx context.Context) domain.HealthSummary {
	if p.variant == VariantDummy {
		return domain.HealthSummary{Tokens: domain.HealthOK, Models: domain.HealthOK}
	}

	payload := wca.CompletionRequest{
		ModelID: p.settings.HealthModelID,
		Prompt:  healthProbePrompt,
	}

	_, err := p.roundTrip(ctx, callSpec{
		op:        OpCompletion,
		path:      wca.PathCodegen,
		payload:   payload,
		apiKey:    p.settings.HealthAPIKey,
		modelID:   p.settings.HealthModelID,
		requestID: uuid.NewString(),
		timeout:   p.timeoutFor(1),
		classify:  classify.Completion,
	})
	if err == nil {
		return domain.HealthSummary{Tokens: domain.HealthOK, Models: domain.HealthOK}
	}

	p.logger.WarnContext(ctx, "health probe failed",
		slog.String("variant", string(p.variant)),
		slog.String("error", err.Error()),
	)

	if domain.IsKind(err, domain.FailInference) {
		return domain.HealthSummary{Tokens: domain.HealthOK, Models: domain.HealthUnavailable}
	}
	return domain.HealthSummary{Tokens: domain.HealthUnavailable, Models: domain.HealthUnavailable}
}
