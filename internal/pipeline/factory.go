package pipeline

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/iam"
	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/backoff"
	"github.com/ansible-wisdom/wca-pipeline/internal/config"
	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/token"
)

// New constructs the configured pipeline variant. store may be nil for
// variants that carry credentials in process configuration; metrics may be
// nil to disable emission. All collaborators are injected here; the
// pipeline itself reaches for no globals.
func New(cfg *config.Config, store credentials.Store, metrics backoff.Metrics, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = backoff.NopMetrics{}
	}

	settings := Settings{
		TimeoutPerTask: cfg.TimeoutPerTask,
		Username:       cfg.Username,
		HealthAPIKey:   cfg.Health.APIKey,
		HealthModelID:  cfg.Health.ModelID,
		DummyLatency:   cfg.Dummy.Latency,
		DummyResponse:  cfg.Dummy.Response,
	}

	if cfg.Variant == config.VariantDummy {
		return NewDummy(settings, opts...), nil
	}

	httpClient := newHTTPClient(cfg.VerifyTLS)
	client := wca.NewClient(cfg.InferenceURL, wca.WithHTTPClient(httpClient))
	exec := backoff.New(cfg.RetryCount, backoff.WithMetrics(metrics))

	resolverCfg := credentials.Config{
		APIKeyOverride:  cfg.APIKeyOverride,
		ModelIDOverride: cfg.ModelIDOverride,
		TrialEnabled:    cfg.Trial.Enabled,
		TrialPlanName:   cfg.Trial.PlanName,
		TrialAPIKey:     cfg.Trial.APIKey,
		TrialModelID:    cfg.Trial.ModelID,
	}

	switch cfg.Variant {
	case config.VariantSaaS:
		resolver := credentials.NewResolver(resolverCfg, store, nil)

		var iamOpts []iam.ClientOption
		iamOpts = append(iamOpts, iam.WithHTTPClient(httpClient))
		if cfg.IDP.Login != "" {
			iamOpts = append(iamOpts, iam.WithBasicAuth(cfg.IDP.Login, cfg.IDP.Password))
		}
		// Token retries are bounded independently of model-call retries.
		tokenExec := backoff.New(cfg.RetryCount, backoff.WithMetrics(metrics))
		exchanger := token.NewExchanger(iam.NewClient(cfg.IDP.URL, iamOpts...), tokenExec, nil)
		cache := token.NewCache(exchanger)

		return NewSaaS(settings, client, resolver, cache, exec, opts...), nil

	case config.VariantOnPrem:
		// Trials and the secret store do not apply on prem; the process
		// configuration is the only credential source.
		resolver := credentials.NewResolver(credentials.Config{
			APIKeyOverride:  cfg.APIKeyOverride,
			ModelIDOverride: cfg.ModelIDOverride,
		}, nil, nil)
		return NewOnPrem(settings, client, resolver, exec, opts...), nil

	case config.VariantHTTP:
		resolver := credentials.NewResolver(credentials.Config{
			ModelIDOverride: cfg.ModelIDOverride,
		}, nil, nil)
		return NewHTTP(settings, client, resolver, exec, opts...), nil
	}

	return nil, fmt.Errorf("unknown pipeline variant %q", cfg.Variant)
}

// newHTTPClient builds the shared keep-alive pool for one pipeline
// instance, traced via otelhttp.
func newHTTPClient(verifyTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
	}
}
