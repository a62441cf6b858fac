// Package connector implements the uniform HTTP client used to pull
// documents from source connectors: GET {url}/pull?since=<ISO-8601>, with
// retry on 5xx/network errors and immediate failure on 4xx.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MrWong99/graphkb/internal/resilience"
)

// DefaultRetry is the backoff schedule spec §4.3 mandates: up to 3 retries,
// base 250ms, capped at 4s.
var DefaultRetry = resilience.RetryConfig{MaxAttempts: 4, Base: 250 * time.Millisecond, Cap: 4 * time.Second}

// Credential carries an opaque auth credential resolved by the transport
// shell from a source's auth_ref; C3 only attaches it to outgoing requests,
// it never resolves auth_ref itself.
type Credential struct {
	BearerToken string
	BasicUser   string
	BasicPass   string
}

func (c Credential) apply(req *http.Request) {
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.BasicUser != "":
		req.SetBasicAuth(c.BasicUser, c.BasicPass)
	}
}

// PullResult is one page of documents pulled from a connector.
type PullResult struct {
	Documents []json.RawMessage `json:"documents"`
	NextSince string             `json:"next_since,omitempty"`
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client. Default: http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry overrides the retry schedule. Default: [DefaultRetry].
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client pulls documents from connector endpoints over HTTP.
type Client struct {
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// New constructs a Client with the supplied options.
func New(opts ...Option) *Client {
	c := &Client{httpClient: http.DefaultClient, retry: DefaultRetry}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Pull fetches one page of documents from baseURL's /pull endpoint. since,
// when non-empty, is forwarded as the ?since= query parameter. Transient
// failures (network error or 5xx) are retried per the client's retry
// schedule; a 4xx response fails immediately with [SourceError].
func (c *Client) Pull(ctx context.Context, baseURL string, since string, cred Credential) (PullResult, error) {
	u := baseURL + "/pull"
	if since != "" {
		u += "?since=" + url.QueryEscape(since)
	}

	var result PullResult
	err := resilience.Retry(ctx, c.retry, isRetryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("connector: build pull request: %w", err)
		}
		cred.apply(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("connector: pull: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &SourceError{Status: resp.StatusCode, Body: string(body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("connector: decode pull response: %w", err)
		}
		return nil
	})
	if err != nil {
		return PullResult{}, err
	}
	return result, nil
}

// Health calls baseURL's /health endpoint and reports an error unless it
// responds 200 with {"status":"ok"}.
func (c *Client) Health(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("connector: build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connector: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connector: health: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("connector: decode health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("connector: health: status=%q", body.Status)
	}
	return nil
}

// isRetryable reports whether err should be retried: true for network
// errors and 5xx, false for a [SourceError] carrying a 4xx status (the
// caller's retry budget should not be spent on a client error).
func isRetryable(err error) bool {
	se, ok := err.(*SourceError)
	if !ok {
		return true
	}
	return se.Status >= 500
}
