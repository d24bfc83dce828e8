// Package iam is the low-level client for the IBM Cloud IAM token
// endpoint, which exchanges an API key for a short-lived bearer token.
package iam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GrantType is the fixed OAuth grant for API key exchange.
const GrantType = "urn:ibm:params:oauth:grant-type:apikey"

// BasicAuth holds optional client credentials for the token endpoint.
type BasicAuth struct {
	Login    string
	Password string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBasicAuth attaches client credentials to every token request.
func WithBasicAuth(login, password string) ClientOption {
	return func(c *Client) {
		c.basic = &BasicAuth{Login: login, Password: password}
	}
}

// Client talks to one identity provider. Safe for concurrent use.
type Client struct {
	baseURL    string
	basic      *BasicAuth
	httpClient *http.Client
}

// NewClient creates a client for the given IDP base URL.
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

// Response is a fully-read token endpoint response, kept raw for
// classification.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// TokenBody is the decoded success payload of the token endpoint.
type TokenBody struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Expiration  int64  `json:"expiration"`
}

// ExpiresAt derives the absolute expiry instant, preferring the provider's
// own expiration timestamp over the relative expires_in.
func (b *TokenBody) ExpiresAt(now time.Time) time.Time {
	if b.Expiration > 0 {
		return time.Unix(b.Expiration, 0)
	}
	return now.Add(time.Duration(b.ExpiresIn) * time.Second)
}

// Token posts the form-encoded exchange request. The API key travels only
// in the request body; it never appears in errors.
func (c *Client) Token(ctx context.Context, apiKey string) (*Response, error) {
	form := url.Values{}
	form.Set("grant_type", GrantType)
	form.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.basic != nil {
		req.SetBasicAuth(c.basic.Login, c.basic.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Decode parses a success body.
func (r *Response) Decode() (*TokenBody, error) {
	var body TokenBody
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &body, nil
}
