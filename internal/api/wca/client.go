// Package wca is the low-level HTTP client for the WCA inference service.
// It speaks the wire format and nothing else: credential resolution, retry,
// and response classification live in the layers above.
package wca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Endpoint paths, relative to the inference base URL.
const (
	PathCodegen             = "/v1/wca/codegen/ansible"
	PathCodematch           = "/v1/wca/codematch/ansible"
	PathPlaybookGeneration  = "/v1/wca/codegen/ansible/playbook"
	PathPlaybookExplanation = "/v1/wca/explain/ansible/playbook"
)

// Headers the service round-trips or consumes.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserUUID  = "X-Request-User-UUID"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client, e.g. one with a tuned transport
// or a VCR recorder.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is the HTTP client for a single WCA deployment. The underlying
// connection pool is shared across requests and safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given inference base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestOptions carries per-request headers.
type RequestOptions struct {
	// Authorization is the complete header value ("Bearer ..." or
	// "ZenApiKey ...").
	Authorization string

	// RequestID is sent as X-Request-ID when non-empty.
	RequestID string

	// UserUUID is sent as X-Request-User-UUID when non-empty.
	UserUUID string
}

// Post sends a JSON payload to path and returns the fully-read response.
// An error is returned only for transport-level failures; HTTP error
// statuses come back as a Response for the caller to classify.
func (c *Client) Post(ctx context.Context, path string, payload any, opts *RequestOptions) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if opts != nil {
		if opts.Authorization != "" {
			req.Header.Set("Authorization", opts.Authorization)
		}
		if opts.RequestID != "" {
			req.Header.Set(HeaderRequestID, opts.RequestID)
		}
		if opts.UserUUID != "" {
			req.Header.Set(HeaderUserUUID, opts.UserUUID)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		RequestID:   resp.Header.Get(HeaderRequestID),
	}, nil
}
