// Package pipeline composes the credential resolver, token exchanger,
// backoff executor, and response classifier into the four operation
// contracts exposed to callers. Four variants share the skeleton and
// differ in credentialing and capabilities:
//
//   - SaaS: IAM token exchange, Bearer authorization
//   - OnPrem: ZenApiKey authorization, no token exchange
//   - HTTP: plain model server speaking the same wire format
//   - Dummy: canned responses for development and load testing
//
// A pipeline instance holds no per-request state; all methods are safe for
// concurrent use.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansible-wisdom/wca-pipeline/internal/api/wca"
	"github.com/ansible-wisdom/wca-pipeline/internal/backoff"
	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
	"github.com/ansible-wisdom/wca-pipeline/internal/token"
)

// Variant identifies a pipeline implementation.
type Variant string

const (
	VariantSaaS   Variant = "wca"
	VariantOnPrem Variant = "wca-onprem"
	VariantHTTP   Variant = "http"
	VariantDummy  Variant = "dummy"
)

// Operation names one of the four pipeline operations.
type Operation string

const (
	OpCompletion          Operation = "completion"
	OpContentMatch        Operation = "codematch"
	OpPlaybookGeneration  Operation = "playbook_generation"
	OpPlaybookExplanation Operation = "playbook_explanation"
)

var variantOperations = map[Variant][]Operation{
	VariantSaaS:   {OpCompletion, OpContentMatch, OpPlaybookGeneration, OpPlaybookExplanation},
	VariantOnPrem: {OpCompletion, OpContentMatch, OpPlaybookGeneration, OpPlaybookExplanation},
	VariantHTTP:   {OpCompletion},
	VariantDummy:  {OpCompletion, OpContentMatch, OpPlaybookGeneration, OpPlaybookExplanation},
}

// Anonymizer scrubs personally identifying values from free text before it
// leaves the process. Implementations must be pure transformations.
type Anonymizer interface {
	Anonymize(text string) string
}

// Linter post-processes a generated playbook, e.g. through ansible-lint.
type Linter interface {
	Run(ctx context.Context, playbook string) (string, error)
}

// Settings are the per-variant knobs the pipeline reads at construction.
type Settings struct {
	// TimeoutPerTask bounds each HTTP attempt, scaled by the task count of
	// the request. Zero disables the per-call timeout.
	TimeoutPerTask time.Duration

	// Username is the ZenApiKey login for the on-prem variant.
	Username string

	// HealthAPIKey and HealthModelID are the reserved credentials for the
	// health probe.
	HealthAPIKey  string
	HealthModelID string

	// DummyLatency delays each dummy response to simulate the upstream.
	DummyLatency time.Duration

	// DummyResponse replaces the built-in canned completion prediction.
	DummyResponse string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithAnonymizer installs the anonymization collaborator used by playbook
// generation and explanation.
func WithAnonymizer(a Anonymizer) Option {
	return func(p *Pipeline) { p.anonymizer = a }
}

// WithAnonymizationPolicy replaces the per-tenant anonymization decision.
// The default anonymizes whenever the tenant is unknown.
func WithAnonymizationPolicy(enabled func(tenant *domain.TenantID) bool) Option {
	return func(p *Pipeline) { p.anonymizeFor = enabled }
}

// WithLinter installs the playbook post-processor.
func WithLinter(l Linter) Option {
	return func(p *Pipeline) { p.linter = l }
}

// Pipeline is one configured variant. Construct with NewSaaS, NewOnPrem,
// NewHTTP, or NewDummy.
type Pipeline struct {
	variant  Variant
	settings Settings

	client *wca.Client
	creds  *credentials.Resolver
	tokens token.Source // SaaS only
	exec   *backoff.Executor

	anonymizer   Anonymizer
	anonymizeFor func(tenant *domain.TenantID) bool
	linter       Linter
	logger       *slog.Logger
}

// NewSaaS builds the SaaS variant: credentials from the resolver, bearer
// tokens from the exchanger.
func NewSaaS(settings Settings, client *wca.Client, creds *credentials.Resolver, tokens token.Source, exec *backoff.Executor, opts ...Option) *Pipeline {
	return newPipeline(VariantSaaS, settings, client, creds, tokens, exec, opts)
}

// NewOnPrem builds the on-prem variant: ZenApiKey authorization, no token
// exchange.
func NewOnPrem(settings Settings, client *wca.Client, creds *credentials.Resolver, exec *backoff.Executor, opts ...Option) *Pipeline {
	return newPipeline(VariantOnPrem, settings, client, creds, nil, exec, opts)
}

// NewHTTP builds the plain HTTP variant for model servers that speak the
// WCA wire format without IBM credentialing. Completion only.
func NewHTTP(settings Settings, client *wca.Client, creds *credentials.Resolver, exec *backoff.Executor, opts ...Option) *Pipeline {
	return newPipeline(VariantHTTP, settings, client, creds, nil, exec, opts)
}

// NewDummy builds the canned-response variant.
func NewDummy(settings Settings, opts ...Option) *Pipeline {
	return newPipeline(VariantDummy, settings, nil, nil, nil, backoff.New(0), opts)
}

func newPipeline(v Variant, settings Settings, client *wca.Client, creds *credentials.Resolver, tokens token.Source, exec *backoff.Executor, opts []Option) *Pipeline {
	p := &Pipeline{
		variant:  v,
		settings: settings,
		client:   client,
		creds:    creds,
		tokens:   tokens,
		exec:     exec,
		logger:   slog.Default(),
		// Anonymization defaults on when the tenant is unknown.
		anonymizeFor: func(tenant *domain.TenantID) bool { return tenant == nil },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Variant returns the pipeline discriminator.
func (p *Pipeline) Variant() Variant {
	return p.variant
}

// Supports reports whether this variant implements the operation.
func (p *Pipeline) Supports(op Operation) bool {
	for _, o := range variantOperations[p.variant] {
		if o == op {
			return true
		}
	}
	return false
}

// callSpec fully describes one upstream round trip.
type callSpec struct {
	op        Operation
	path      string
	payload   any
	apiKey    string
	modelID   string
	requestID string
	userUUID  string
	// eventID is the caller-assigned analytics id for playbook operations;
	// it never goes on the wire, only into failure log records.
	eventID  string
	timeout  time.Duration
	classify func(status int, contentType string, body []byte) *domain.PipelineError
}

// roundTrip executes the shared request skeleton: build headers, post via
// the backoff executor, verify the correlation id, classify. Classified
// failures are logged here exactly once; higher layers must not repeat it.
func (p *Pipeline) roundTrip(ctx context.Context, spec callSpec) (*wca.Response, error) {
	auth, err := p.authorization(ctx, spec.apiKey)
	if err != nil {
		return nil, err
	}
	opts := &wca.RequestOptions{
		Authorization: auth,
		RequestID:     spec.requestID,
		UserUUID:      spec.userUUID,
	}

	var resp *wca.Response
	err = p.exec.Do(ctx, string(spec.op), func(ctx context.Context) error {
		resp = nil
		if spec.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, spec.timeout)
			defer cancel()
		}
		r, err := p.client.Post(ctx, spec.path, spec.payload, opts)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= 400 {
			return &wca.StatusError{Response: r}
		}
		return nil
	})

	if err != nil {
		// Context errors take precedence over any response captured on an
		// earlier attempt: a deadline expiring during the backoff sleep is
		// still a timeout, not whatever the previous attempt returned.
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s canceled: %w", spec.op, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewError(domain.FailModelTimeout, "deadline exceeded before a final response").
				WithModelID(spec.modelID).
				WithCause(err)
		}
		if resp == nil {
			return nil, domain.NewError(domain.FailInference, "upstream unreachable").
				WithModelID(spec.modelID).
				WithCause(err)
		}
	}

	// The correlation id must round-trip exactly, regardless of status.
	if spec.requestID != "" && resp.RequestID != "" && resp.RequestID != spec.requestID {
		p.logger.ErrorContext(ctx, "correlation id mismatch",
			slog.String("operation", string(spec.op)),
			slog.String("sent", spec.requestID),
			slog.String("received", resp.RequestID),
		)
		return nil, domain.NewError(domain.FailCorrelation, "request id not echoed back").
			WithModelID(spec.modelID).
			WithStatus(resp.StatusCode, resp.ContentType)
	}

	if cerr := spec.classify(resp.StatusCode, resp.ContentType, resp.Body); cerr != nil {
		cerr.ModelID = spec.modelID
		args := []any{
			slog.String("operation", string(spec.op)),
			slog.String("kind", string(cerr.Kind)),
			slog.Int("status", resp.StatusCode),
			slog.String("content_type", resp.ContentType),
			slog.String("body", string(resp.Body)),
		}
		if spec.eventID != "" {
			args = append(args, slog.String("event_id", spec.eventID))
		}
		p.logger.ErrorContext(ctx, "upstream request classified as failure", args...)
		return nil, cerr
	}

	return resp, nil
}

// authorization builds the variant-specific Authorization header. The key
// itself never leaves this function except inside the header value.
func (p *Pipeline) authorization(ctx context.Context, apiKey string) (string, error) {
	switch p.variant {
	case VariantSaaS:
		tok, err := p.tokens.Get(ctx, apiKey)
		if err != nil {
			return "", err
		}
		return "Bearer " + tok.AccessToken, nil
	case VariantOnPrem:
		raw := base64.StdEncoding.EncodeToString([]byte(p.settings.Username + ":" + apiKey))
		return "ZenApiKey " + raw, nil
	default:
		return "", nil
	}
}

// needsAPIKey reports whether the variant resolves a per-tenant API key.
func (p *Pipeline) needsAPIKey() bool {
	return p.variant == VariantSaaS || p.variant == VariantOnPrem
}

// resolve produces the request credentials through the resolver, attaching
// the model id to any API-key failure so callers always learn what was
// attempted.
func (p *Pipeline) resolve(ctx context.Context, env domain.Envelope) (domain.Credentials, error) {
	modelID, err := p.creds.ModelID(ctx, env.User, env.TenantID, env.ModelIDOverride)
	if err != nil {
		return domain.Credentials{}, err
	}
	creds := domain.Credentials{ModelID: modelID}
	if p.needsAPIKey() {
		apiKey, err := p.creds.APIKey(ctx, env.User, env.TenantID)
		if err != nil {
			return domain.Credentials{}, domain.AttachModelID(err, modelID)
		}
		creds.APIKey = apiKey
	}
	return creds, nil
}

// userUUID returns the SaaS user header value for the envelope.
func (p *Pipeline) userUUID(env domain.Envelope) string {
	if p.variant != VariantSaaS || env.User == nil {
		return ""
	}
	return env.User.UserID
}

// scrub applies the anonymizer to one free-text field when the tenant's
// policy requires it.
func (p *Pipeline) scrub(tenant *domain.TenantID, text string) string {
	if p.anonymizer == nil || text == "" || !p.anonymizeFor(tenant) {
		return text
	}
	return p.anonymizer.Anonymize(text)
}

// timeoutFor scales the per-task timeout by the request's task count.
func (p *Pipeline) timeoutFor(tasks int) time.Duration {
	if tasks < 1 {
		tasks = 1
	}
	return p.settings.TimeoutPerTask * time.Duration(tasks)
}
