// Package token exchanges a WCA API key for a short-lived IAM bearer
// token, with retry and an optional shared cache.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/iam"
	"github.com/ansible-wisdom/wca-pipeline/internal/backoff"
	"github.com/ansible-wisdom/wca-pipeline/internal/classify"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// Token is a bearer token and its expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token is usable at now with the given safety
// margin before expiry.
func (t *Token) Valid(now time.Time, margin time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Add(margin).Before(t.ExpiresAt)
}

// Source produces a bearer token for an API key.
type Source interface {
	Get(ctx context.Context, apiKey string) (*Token, error)
}

// Exchanger performs the IAM exchange through the backoff executor and
// classifies failures with the IAM rule set. It holds no mutable state.
type Exchanger struct {
	client *iam.Client
	exec   *backoff.Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewExchanger creates an exchanger. exec bounds the token retries
// independently of the model-call retries.
func NewExchanger(client *iam.Client, exec *backoff.Executor, logger *slog.Logger) *Exchanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchanger{
		client: client,
		exec:   exec,
		logger: logger,
		now:    time.Now,
	}
}

type tokenStatusError struct {
	resp *iam.Response
}

func (e *tokenStatusError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d", e.resp.StatusCode)
}

// Fatal mirrors the model-call predicate: any 4xx except 429 is terminal.
func (e *tokenStatusError) Fatal() bool {
	code := e.resp.StatusCode
	return code >= 400 && code < 500 && code != 429
}

// Get exchanges the API key for a fresh token.
func (e *Exchanger) Get(ctx context.Context, apiKey string) (*Token, error) {
	var resp *iam.Response

	err := e.exec.Do(ctx, "token", func(ctx context.Context) error {
		resp = nil
		r, err := e.client.Token(ctx, apiKey)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= 400 {
			return &tokenStatusError{resp: r}
		}
		return nil
	})
	if err != nil && resp == nil {
		// Transport-level failure on every attempt; no response to classify.
		e.logger.ErrorContext(ctx, "token exchange failed without a response",
			slog.String("error", err.Error()))
		return nil, domain.NewError(domain.FailToken, "identity provider unreachable").WithCause(err)
	}

	if cerr := classify.Token(resp.StatusCode, resp.ContentType, resp.Body); cerr != nil {
		e.logger.ErrorContext(ctx, "token exchange rejected",
			slog.String("kind", string(cerr.Kind)),
			slog.Int("status", resp.StatusCode),
			slog.String("content_type", resp.ContentType),
			slog.String("body", string(resp.Body)),
		)
		return nil, cerr
	}

	body, err := resp.Decode()
	if err != nil {
		return nil, domain.NewError(domain.FailToken, "malformed token response").WithCause(err)
	}

	return &Token{
		AccessToken: body.AccessToken,
		ExpiresAt:   body.ExpiresAt(e.now()),
	}, nil
}
