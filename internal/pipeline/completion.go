package pipeline

import (
	"context"
	"encoding/json"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/classify"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Complete requests a code completion. The prompt is normalized before
// transmission and the per-call timeout scales with the task count of
// multi-task prompts.
func (p *Pipeline) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if !p.Supports(OpCompletion) {
		return nil, domain.ErrUnsupportedOperation
	}
	if p.variant == VariantDummy {
		return p.dummyComplete(ctx, req)
	}

	creds, err := p.resolve(ctx, req.Envelope)
	if err != nil {
		return nil, err
	}

	tasks := TaskCount(req.Prompt)
	payload := wca.CompletionRequest{
		ModelID: creds.ModelID,
		Prompt:  req.Context + NormalizePrompt(req.Prompt),
	}

	resp, err := p.roundTrip(ctx, callSpec{
		op:        OpCompletion,
		path:      wca.PathCodegen,
		payload:   payload,
		apiKey:    creds.APIKey,
		modelID:   creds.ModelID,
		requestID: req.CorrelationID,
		userUUID:  p.userUUID(req.Envelope),
		timeout:   p.timeoutFor(tasks),
		classify:  classify.Completion,
	})
	if err != nil {
		return nil, err
	}

	var body wca.CompletionResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, domain.NewError(domain.FailInference, "malformed completion body").
			WithModelID(creds.ModelID).
			WithCause(err)
	}

	return &domain.CompletionResponse{
		Predictions: body.Predictions,
		ModelID:     creds.ModelID,
	}, nil
}
