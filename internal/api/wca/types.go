package wca

import "fmt"

// CompletionRequest is the wire body for the codegen endpoint.
type CompletionRequest struct {
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
}

// CompletionResponse is the wire body of a successful codegen response.
type CompletionResponse struct {
	Predictions []string `json:"predictions"`
}

// CodematchRequest is the wire body for the codematch endpoint. Input is
// the ordered suggestion sequence.
type CodematchRequest struct {
	ModelID string   `json:"model_id"`
	Input   []string `json:"input"`
}

// PlaybookGenerationRequest is the wire body for playbook generation.
type PlaybookGenerationRequest struct {
	ModelID       string `json:"model_id"`
	Text          string `json:"text"`
	CreateOutline bool   `json:"create_outline"`
	Outline       string `json:"outline,omitempty"`
	CustomPrompt  string `json:"custom_prompt,omitempty"`
}

// PlaybookWarning is a wire-level advisory on a generated playbook.
type PlaybookWarning struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// PlaybookGenerationResponse is the wire body of a successful generation.
type PlaybookGenerationResponse struct {
	Playbook string            `json:"playbook"`
	Outline  string            `json:"outline"`
	Warnings []PlaybookWarning `json:"warnings"`
}

// PlaybookExplanationRequest is the wire body for playbook explanation.
type PlaybookExplanationRequest struct {
	ModelID      string `json:"model_id"`
	Playbook     string `json:"playbook"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

// PlaybookExplanationResponse is the wire body of a successful explanation.
type PlaybookExplanationResponse struct {
	Content string `json:"content"`
}

// Response is a fully-read upstream HTTP response. The body is retained so
// the caller can classify it; the echoed request id supports the
// correlation check.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte

	// RequestID is the echoed X-Request-ID header, if any.
	RequestID string
}

// StatusError wraps an upstream response with status >= 400 so the backoff
// executor can distinguish terminal client errors from retryable ones.
type StatusError struct {
	Response *Response
}

// Error implements the error interface. The body is deliberately omitted;
// it is logged once by the classification layer.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Response.StatusCode)
}

// Fatal reports whether the status must not be retried: every 4xx except
// 429. Network failures, 429, and 5xx remain retryable.
func (e *StatusError) Fatal() bool {
	code := e.Response.StatusCode
	return code >= 400 && code < 500 && code != 429
}
