// Package bigquery implements a query executor over the BigQuery REST API.
// It submits jobs, polls for completion and fetches result pages in parallel.
package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Options configures the BigQuery client.
type Options struct {
	// BaseURL is the jobs API endpoint, without trailing slash.
	BaseURL   string
	ProjectID string

	TokenSource oauth2.TokenSource

	PollInitialDelay time.Duration
	PollMaxDelay     time.Duration
	PollTimeout      time.Duration

	PageSize         int
	FetchConcurrency int

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a thin BigQuery REST v2 client scoped to one project.
type Client struct {
	baseURL    string
	projectID  string
	baseTokens oauth2.TokenSource
	httpClient *http.Client
	logger     *zap.Logger

	// tokenMu guards tokens: parallel page fetches read it while a 401
	// handler swaps it for a fresh source.
	tokenMu sync.Mutex
	tokens  oauth2.TokenSource

	pollInitialDelay time.Duration
	pollMaxDelay     time.Duration
	pollTimeout      time.Duration

	pageSize         int
	fetchConcurrency int
}

// NewClient creates a BigQuery client. Missing options get conservative
// defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("bigquery project ID is required")
	}
	if opts.TokenSource == nil {
		return nil, fmt.Errorf("bigquery token source is required")
	}

	c := &Client{
		baseURL:          opts.BaseURL,
		projectID:        opts.ProjectID,
		baseTokens:       opts.TokenSource,
		tokens:           oauth2.ReuseTokenSource(nil, opts.TokenSource),
		httpClient:       opts.HTTPClient,
		logger:           opts.Logger,
		pollInitialDelay: opts.PollInitialDelay,
		pollMaxDelay:     opts.PollMaxDelay,
		pollTimeout:      opts.PollTimeout,
		pageSize:         opts.PageSize,
		fetchConcurrency: opts.FetchConcurrency,
	}
	if c.baseURL == "" {
		c.baseURL = "https://bigquery.googleapis.com/bigquery/v2"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.pollInitialDelay <= 0 {
		c.pollInitialDelay = 250 * time.Millisecond
	}
	if c.pollMaxDelay <= 0 {
		c.pollMaxDelay = 5 * time.Second
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = 5 * time.Minute
	}
	if c.pageSize <= 0 {
		c.pageSize = 5000
	}
	if c.fetchConcurrency <= 0 {
		c.fetchConcurrency = 4
	}
	return c, nil
}

// apiError is a non-2xx response from the BigQuery API.
type apiError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("bigquery api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("bigquery api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the error is transient per the jobs API.
func (e *apiError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	switch e.Reason {
	case "backendError", "rateLimitExceeded", "internalError":
		return true
	}
	return false
}

// doJSON performs one API call, decoding the JSON response into out.
// A 401 triggers exactly one token refresh and retry; all other failures
// surface to the caller.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	refreshed := false
	for {
		c.tokenMu.Lock()
		tokens := c.tokens
		c.tokenMu.Unlock()

		token, err := tokens.Token()
		if err != nil {
			return fmt.Errorf("failed to obtain warehouse token: %w", err)
		}

		var reqBody io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to encode request: %w", err)
			}
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		token.SetAuthHeader(req)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("warehouse request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && !refreshed {
			_ = resp.Body.Close()
			refreshed = true
			// Drop the cached token and retry once with a fresh one. A
			// concurrent caller may already have swapped the source; only
			// replace the one this call actually used.
			c.tokenMu.Lock()
			if c.tokens == tokens {
				c.tokens = oauth2.ReuseTokenSource(nil, c.baseTokens)
			}
			c.tokenMu.Unlock()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return decodeAPIError(resp)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode warehouse response: %w", err)
		}
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &apiError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &envelope) == nil {
		apiErr.Message = envelope.Error.Message
		if len(envelope.Error.Errors) > 0 {
			apiErr.Reason = envelope.Error.Errors[0].Reason
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = string(raw)
	}
	return apiErr
}
