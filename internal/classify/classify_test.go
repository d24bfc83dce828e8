package classify

import (
	"testing"

	"github.com/ansible-wisdom/wca-pipeline/internal/domain"
)

const ctJSON = "application/json"

func TestCompletionRuleOrder(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        domain.FailKind
	}{
		{
			name:   "204 no content",
			status: 204,
			want:   domain.FailEmptyResponse,
		},
		{
			name:        "204 with stray body is still empty",
			status:      204,
			contentType: ctJSON,
			body:        `{}`,
			want:        domain.FailEmptyResponse,
		},
		{
			name:        "400 model id token sequence",
			status:      400,
			contentType: ctJSON,
			body:        `{"error":"Bad request: [('value_error', ('body', 'model_id'))]"}`,
			want:        domain.FailInvalidModelID,
		},
		{
			name:        "400 space id parse failure",
			status:      400,
			contentType: ctJSON,
			body:        `{"detail":"Failed to parse space id and model id"}`,
			want:        domain.FailInvalidModelID,
		},
		{
			name:        "400 HAP filter",
			status:      400,
			contentType: ctJSON,
			body:        `{"detail":"Our filters detected a potential problem with entities in your input"}`,
			want:        domain.FailHAPFilter,
		},
		{
			name:        "400 anything else",
			status:      400,
			contentType: ctJSON,
			body:        `{"detail":"malformed yaml"}`,
			want:        domain.FailBadRequest,
		},
		{
			name:        "403 cloudflare, case-insensitive, non-JSON",
			status:      403,
			contentType: "text/html",
			body:        `<html>Attention Required! | CloudFlare</html>`,
			want:        domain.FailCloudflare,
		},
		{
			name:        "403 trial expired message id",
			status:      403,
			contentType: ctJSON,
			body:        `{"message_id":"WCA-0001-E","detail":"trial expired"}`,
			want:        domain.FailTrialExpired,
		},
		{
			name:        "403 trial expired id embedded in surrounding text",
			status:      403,
			contentType: ctJSON,
			body:        `{"message_id":"WCA-0001-E: your trial subscription has expired","detail":"trial expired"}`,
			want:        domain.FailTrialExpired,
		},
		{
			name:        "403 anything else is entitlement",
			status:      403,
			contentType: ctJSON,
			body:        `{"detail":"forbidden"}`,
			want:        domain.FailInvalidModelID,
		},
		{
			name:        "404 wml api call failed",
			status:      404,
			contentType: ctJSON,
			body:        `{"detail":"WML API call failed: something"}`,
			want:        domain.FailInvalidModelID,
		},
		{
			name:        "404 wml detail without json content type falls through",
			status:      404,
			contentType: "text/plain",
			body:        `{"detail":"WML API call failed: something"}`,
			want:        domain.FailInference,
		},
		{
			name:        "404 instance deleted",
			status:      404,
			contentType: ctJSON,
			body:        `{"detail":"The WCA instance crn:v1:bluemix has been deleted"}`,
			want:        domain.FailInstanceDeleted,
		},
		{
			name:        "404 anything else",
			status:      404,
			contentType: ctJSON,
			body:        `{"detail":"no such route"}`,
			want:        domain.FailInference,
		},
		{
			name:        "422 validation failed",
			status:      422,
			contentType: ctJSON,
			body:        `{"detail":"validation failed for field text"}`,
			want:        domain.FailValidation,
		},
		{
			name:        "500 unclassified",
			status:      500,
			contentType: "text/plain",
			body:        "internal error",
			want:        domain.FailInference,
		},
		{
			name:        "429 unclassified",
			status:      429,
			contentType: ctJSON,
			body:        `{"detail":"slow down"}`,
			want:        domain.FailInference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Completion(tt.status, tt.contentType, []byte(tt.body))
			if err == nil {
				t.Fatalf("Completion(%d) = nil, want kind %s", tt.status, tt.want)
			}
			if err.Kind != tt.want {
				t.Errorf("Completion(%d) kind = %s, want %s", tt.status, err.Kind, tt.want)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}
}

func TestCompletionSuccess(t *testing.T) {
	for _, status := range []int{200, 201} {
		if err := Completion(status, ctJSON, []byte(`{"predictions":["x"]}`)); err != nil {
			t.Errorf("Completion(%d) = %v, want nil", status, err)
		}
	}
}

func TestBadRequestPayloadPreserved(t *testing.T) {
	body := `{"detail":"malformed yaml"}`
	err := Completion(400, ctJSON, []byte(body))
	if err == nil || err.Kind != domain.FailBadRequest {
		t.Fatalf("unexpected classification: %v", err)
	}
	if string(err.Payload) != body {
		t.Errorf("Payload = %q, want %q", err.Payload, body)
	}
}

func TestContentMatchOmitsHAPAndValidation(t *testing.T) {
	// The HAP detail sentence on the codematch endpoint is a plain 400.
	err := ContentMatch(400, ctJSON,
		[]byte(`{"detail":"Our filters detected a potential problem with entities in your input"}`))
	if err == nil || err.Kind != domain.FailBadRequest {
		t.Errorf("ContentMatch(400 hap body) kind = %v, want %s", err, domain.FailBadRequest)
	}

	// And 422 is unclassified.
	err = ContentMatch(422, ctJSON, []byte(`{"detail":"validation failed"}`))
	if err == nil || err.Kind != domain.FailInference {
		t.Errorf("ContentMatch(422) kind = %v, want %s", err, domain.FailInference)
	}
}

func TestContentMatchInstanceDeletedPrecedesGeneric404(t *testing.T) {
	err := ContentMatch(404, ctJSON,
		[]byte(`{"detail":"The WCA instance abc-123 has been deleted"}`))
	if err == nil || err.Kind != domain.FailInstanceDeleted {
		t.Errorf("kind = %v, want %s", err, domain.FailInstanceDeleted)
	}
}

func TestTokenClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.FailKind
	}{
		{
			name:   "missing apikey property",
			status: 400,
			body:   `{"errorCode":"BXNIM0109E","errorMessage":"Property missing or empty"}`,
			want:   domain.FailTokenAPIKey,
		},
		{
			name:   "unknown api key",
			status: 400,
			body:   `{"errorCode":"BXNIM0415E","errorMessage":"Provided API key could not be found"}`,
			want:   domain.FailTokenAPIKey,
		},
		{
			name:   "other 400",
			status: 400,
			body:   `{"errorMessage":"Grant type is invalid"}`,
			want:   domain.FailToken,
		},
		{
			name:   "server error",
			status: 503,
			body:   `upstream down`,
			want:   domain.FailToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Token(tt.status, ctJSON, []byte(tt.body))
			if err == nil || err.Kind != tt.want {
				t.Errorf("Token(%d) = %v, want kind %s", tt.status, err, tt.want)
			}
		})
	}

	if err := Token(200, ctJSON, []byte(`{"access_token":"T1"}`)); err != nil {
		t.Errorf("Token(200) = %v, want nil", err)
	}
}

func TestJSONFieldFlattensNestedDetail(t *testing.T) {
	body := []byte(`{"detail":["Failed to parse space id and model id",{"hint":"check format"}]}`)
	got := jsonField(body, "detail")
	if got == "" {
		t.Fatal("jsonField returned empty string for nested detail")
	}
	err := Completion(400, ctJSON, body)
	if err == nil || err.Kind != domain.FailInvalidModelID {
		t.Errorf("nested detail classification = %v, want %s", err, domain.FailInvalidModelID)
	}
}
