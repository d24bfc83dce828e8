// Package classify maps upstream HTTP responses to the pipeline failure
// taxonomy. The upstream offers no machine-readable error enum, so the
// mapping inspects status code, content type, and body shape with an
// ordered rule list; the first rule that fires wins.
package classify

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

// A rule inspects one response shape. It returns nil when it does not apply.
type rule func(status int, contentType string, body []byte) *domain.PipelineError

var instanceDeletedRe = regexp.MustCompile(`(?i)\bthe wca instance\b.+\bhas been deleted\b`)

// completionRules is the authoritative rule order for the completion,
// playbook generation, and playbook explanation endpoints. Several rules
// share a status code and are distinguished only by body content, so the
// order is load-bearing.
var completionRules = []rule{
	noContent,
	badRequestModelID,
	badRequestSpaceID,
	hapFilter,
	badRequestFallback,
	cloudflareBlock,
	trialExpired,
	forbiddenFallback,
	wmlAPICallFailed,
	instanceDeleted,
	notFoundFallback,
	validationFailed,
}

// contentMatchRules omits the HAP filter and 422 validation rules, which the
// codematch endpoint never produces.
var contentMatchRules = []rule{
	noContent,
	badRequestModelID,
	badRequestSpaceID,
	badRequestFallback,
	cloudflareBlock,
	trialExpired,
	forbiddenFallback,
	wmlAPICallFailed,
	instanceDeleted,
	notFoundFallback,
}

// Completion classifies a response from the codegen, playbook generation,
// or playbook explanation endpoints. A nil return means success.
func Completion(status int, contentType string, body []byte) *domain.PipelineError {
	return classify(completionRules, status, contentType, body)
}

// ContentMatch classifies a response from the codematch endpoint.
func ContentMatch(status int, contentType string, body []byte) *domain.PipelineError {
	return classify(contentMatchRules, status, contentType, body)
}

// Token classifies a response from the IAM token endpoint.
func Token(status int, contentType string, body []byte) *domain.PipelineError {
	if status < http.StatusBadRequest {
		return nil
	}
	if status == http.StatusBadRequest {
		msg := strings.ToLower(jsonField(body, "errorMessage"))
		if strings.Contains(msg, "property missing or empty") ||
			strings.Contains(msg, "provided api key could not be found") {
			return domain.NewError(domain.FailTokenAPIKey, "identity provider rejected the API key").
				WithStatus(status, contentType).
				WithPayload(body)
		}
	}
	return domain.NewError(domain.FailToken, "identity provider token exchange failed").
		WithStatus(status, contentType).
		WithPayload(body)
}

func classify(rules []rule, status int, contentType string, body []byte) *domain.PipelineError {
	for _, r := range rules {
		if err := r(status, contentType, body); err != nil {
			return err
		}
	}
	if status >= http.StatusBadRequest {
		return domain.NewError(domain.FailInference, "unclassified upstream error").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func noContent(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusNoContent {
		return nil
	}
	return domain.NewError(domain.FailEmptyResponse, "upstream returned no content").
		WithStatus(status, contentType)
}

func badRequestModelID(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusBadRequest {
		return nil
	}
	msg := jsonField(body, "error")
	if strings.Contains(strings.ToLower(msg), "bad request") &&
		strings.Contains(msg, "'body', 'model_id'") {
		return domain.NewError(domain.FailInvalidModelID, "model id rejected by upstream").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func badRequestSpaceID(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusBadRequest {
		return nil
	}
	if strings.Contains(strings.ToLower(jsonField(body, "detail")), "failed to parse space id and model id") {
		return domain.NewError(domain.FailInvalidModelID, "space id and model id could not be parsed").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func hapFilter(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusBadRequest {
		return nil
	}
	if strings.Contains(strings.ToLower(jsonField(body, "detail")),
		"our filters detected a potential problem with entities in your input") {
		return domain.NewError(domain.FailHAPFilter, "input rejected by content filter").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func badRequestFallback(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusBadRequest {
		return nil
	}
	return domain.NewError(domain.FailBadRequest, "upstream rejected the request").
		WithStatus(status, contentType).
		WithPayload(body)
}

func cloudflareBlock(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusForbidden {
		return nil
	}
	if strings.Contains(strings.ToLower(string(body)), "cloudflare") {
		return domain.NewError(domain.FailCloudflare, "request blocked at the edge").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func trialExpired(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusForbidden {
		return nil
	}
	if strings.Contains(strings.ToLower(jsonField(body, "message_id")), "wca-0001-e") {
		return domain.NewError(domain.FailTrialExpired, "trial capacity exhausted").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

// forbiddenFallback treats any other 403 as a model id the presented API key
// is not entitled to.
func forbiddenFallback(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusForbidden {
		return nil
	}
	return domain.NewError(domain.FailInvalidModelID, "model not entitled for this API key").
		WithStatus(status, contentType).
		WithPayload(body)
}

func wmlAPICallFailed(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusNotFound || !isJSON(contentType) {
		return nil
	}
	if strings.Contains(strings.ToLower(jsonField(body, "detail")), "wml api call failed") {
		return domain.NewError(domain.FailInvalidModelID, "WML API call failed upstream").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func instanceDeleted(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusNotFound {
		return nil
	}
	if instanceDeletedRe.MatchString(jsonField(body, "detail")) {
		return domain.NewError(domain.FailInstanceDeleted, "upstream instance has been deleted").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func notFoundFallback(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusNotFound {
		return nil
	}
	return domain.NewError(domain.FailInference, "upstream endpoint not found").
		WithStatus(status, contentType).
		WithPayload(body)
}

func validationFailed(status int, contentType string, body []byte) *domain.PipelineError {
	if status != http.StatusUnprocessableEntity {
		return nil
	}
	if strings.Contains(strings.ToLower(jsonField(body, "detail")), "validation failed") {
		return domain.NewError(domain.FailValidation, "model-side validation failed").
			WithStatus(status, contentType).
			WithPayload(body)
	}
	return nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
