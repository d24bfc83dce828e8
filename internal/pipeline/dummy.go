package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Canned dummy responses. The shapes match what the real upstream returns
// so downstream consumers behave identically in development.
const (
	dummyPrediction = "    ansible.builtin.package:\n      name: openssh-server\n      state: present"

	dummyPlaybook = "---\n- name: Install and start ssh\n  hosts: all\n  tasks:\n" +
		"    - name: Install openssh\n      ansible.builtin.package:\n        name: openssh-server\n        state: present\n"

	dummyOutline = "1. Install the openssh-server package\n2. Start and enable the sshd service\n"

	dummyExplanation = "This playbook installs the openssh-server package on all hosts."
)

var dummyMatches = json.RawMessage(`[[{"repo_name":"ansible.builtin","repo_url":"https://galaxy.ansible.com","path":"tasks/main.yml","license":"gpl-3.0","score":0.98,"data_source_description":"Ansible Galaxy"}]]`)

// wait simulates the configured upstream latency while honoring caller
// cancellation.
func (p *Pipeline) wait(ctx context.Context) error {
	if p.settings.DummyLatency <= 0 {
		return nil
	}
	t := time.NewTimer(p.settings.DummyLatency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) dummyComplete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	prediction := dummyPrediction
	if p.settings.DummyResponse != "" {
		prediction = p.settings.DummyResponse
	}
	return &domain.CompletionResponse{
		Predictions: []string{prediction},
		ModelID:     string(VariantDummy),
	}, nil
}

func (p *Pipeline) dummyMatch(ctx context.Context, req domain.ContentMatchRequest) (*domain.ContentMatchResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return &domain.ContentMatchResponse{
		ModelID: string(VariantDummy),
		Matches: dummyMatches,
	}, nil
}

func (p *Pipeline) dummyGeneratePlaybook(ctx context.Context, req domain.PlaybookGenerationRequest) (*domain.PlaybookGenerationResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	out := &domain.PlaybookGenerationResponse{Playbook: dummyPlaybook}
	if req.CreateOutline {
		out.Outline = dummyOutline
	}
	return out, nil
}

func (p *Pipeline) dummyExplainPlaybook(ctx context.Context, req domain.PlaybookExplanationRequest) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return dummyExplanation, nil
}
