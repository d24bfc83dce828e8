package pipeline

import (
	"context"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/classify"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Match requests attribution matches for an ordered sequence of
// suggestions. The per-call timeout scales with the number of suggestions.
// The codematch endpoint takes no correlation header, so none is sent.
func (p *Pipeline) Match(ctx context.Context, req domain.ContentMatchRequest) (*domain.ContentMatchResponse, error) {
	if !p.Supports(OpContentMatch) {
		return nil, domain.ErrUnsupportedOperation
	}
	if p.variant == VariantDummy {
		return p.dummyMatch(ctx, req)
	}

	creds, err := p.resolve(ctx, req.Envelope)
	if err != nil {
		return nil, err
	}

	payload := wca.CodematchRequest{
		ModelID: creds.ModelID,
		Input:   req.Suggestions,
	}

	resp, err := p.roundTrip(ctx, callSpec{
		op:       OpContentMatch,
		path:     wca.PathCodematch,
		payload:  payload,
		apiKey:   creds.APIKey,
		modelID:  creds.ModelID,
		timeout:  p.timeoutFor(len(req.Suggestions)),
		classify: classify.ContentMatch,
	})
	if err != nil {
		return nil, err
	}

	return &domain.ContentMatchResponse{
		ModelID: creds.ModelID,
		Matches: resp.Body,
	}, nil
}
