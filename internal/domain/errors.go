package domain

import (
	"errors"
	"fmt"
)

// FailKind is the classified failure category for a pipeline request.
type FailKind string

const (
	// FailKeyNotFound means no API key could be resolved for the tenant.
	FailKeyNotFound FailKind = "key_not_found"

	// FailModelIDNotFound means no model id could be resolved for the tenant.
	FailModelIDNotFound FailKind = "model_id_not_found"

	// FailNoDefaultModelID means the user has no tenant and no override to
	// derive a model id from.
	FailNoDefaultModelID FailKind = "no_default_model_id"

	// FailInvalidModelID means the upstream rejected the model id for the
	// presented API key.
	FailInvalidModelID FailKind = "invalid_model_id"

	// FailToken means the IAM token endpoint was unreachable or erroring.
	FailToken FailKind = "token_failure"

	// FailTokenAPIKey means IAM explicitly rejected the API key.
	FailTokenAPIKey FailKind = "token_api_key_error"

	// FailInference is any upstream 4xx/5xx not otherwise classified.
	FailInference FailKind = "inference_failure"

	// FailValidation means model-side validation rejected the input (422).
	FailValidation FailKind = "validation_failure"

	// FailBadRequest is an upstream 400 not otherwise classified.
	FailBadRequest FailKind = "bad_request"

	// FailHAPFilter means the content filter blocked the input.
	FailHAPFilter FailKind = "hap_filter_rejection"

	// FailCloudflare means the edge blocked the request.
	FailCloudflare FailKind = "cloudflare_rejection"

	// FailTrialExpired means the user's trial capacity is exhausted.
	FailTrialExpired FailKind = "user_trial_expired"

	// FailInstanceDeleted means the upstream tenant instance has been deleted.
	FailInstanceDeleted FailKind = "instance_deleted"

	// FailEmptyResponse means the upstream returned 204.
	FailEmptyResponse FailKind = "empty_response"

	// FailModelTimeout means the per-call deadline expired on the final attempt.
	FailModelTimeout FailKind = "model_timeout"

	// FailCorrelation means the request/response correlation ids disagreed.
	FailCorrelation FailKind = "correlation_failure"

	// FailSecretStore means the secret store itself was unavailable.
	FailSecretStore FailKind = "secret_store_error"
)

// Audience indicates who can act on a failure.
type Audience string

const (
	AudienceAdmin Audience = "administrator"
	AudienceUser  Audience = "user"
	AudienceInfra Audience = "infrastructure"
)

// Audience returns who should be told about a failure of this kind.
func (k FailKind) Audience() Audience {
	switch k {
	case FailKeyNotFound, FailModelIDNotFound, FailInvalidModelID,
		FailTokenAPIKey, FailInstanceDeleted:
		return AudienceAdmin
	case FailNoDefaultModelID, FailValidation, FailBadRequest,
		FailHAPFilter, FailTrialExpired, FailEmptyResponse:
		return AudienceUser
	default:
		return AudienceInfra
	}
}

// PipelineError is the single error type surfaced by the pipeline core.
// Detail is a sanitized description; it never contains credentials.
type PipelineError struct {
	Kind FailKind

	// ModelID is the attempted model id, when resolution got that far.
	ModelID string

	// StatusCode and ContentType describe the upstream response that was
	// classified, when one exists.
	StatusCode  int
	ContentType string

	// Payload preserves the upstream body for kinds that forward it.
	Payload []byte

	Detail string
	Err    error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	if e.ModelID != "" {
		return fmt.Sprintf("%s (model_id=%s)", msg, e.ModelID)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is/As traversal.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError creates a PipelineError of the given kind.
func NewError(kind FailKind, detail string) *PipelineError {
	return &PipelineError{Kind: kind, Detail: detail}
}

// WithModelID attaches the attempted model id.
func (e *PipelineError) WithModelID(modelID string) *PipelineError {
	e.ModelID = modelID
	return e
}

// WithStatus records the upstream status code and content type.
func (e *PipelineError) WithStatus(code int, contentType string) *PipelineError {
	e.StatusCode = code
	e.ContentType = contentType
	return e
}

// WithPayload preserves the upstream body on the error.
func (e *PipelineError) WithPayload(body []byte) *PipelineError {
	e.Payload = body
	return e
}

// WithCause records the underlying error.
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Err = err
	return e
}

// KindOf extracts the FailKind from an error chain.
func KindOf(err error) (FailKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether the error chain contains a PipelineError of the
// given kind.
func IsKind(err error, kind FailKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AttachModelID sets the model id on a PipelineError in the chain, if any.
// It returns err unchanged otherwise.
func AttachModelID(err error, modelID string) error {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.ModelID == "" {
		pe.ModelID = modelID
	}
	return err
}

// ErrUnsupportedOperation is returned by pipeline variants that do not
// implement a requested operation. Callers should probe Supports first.
var ErrUnsupportedOperation = errors.New("operation not supported by this pipeline variant")
