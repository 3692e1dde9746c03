// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// ClientAPI defines the interface for Zoom API operations
// This allows for easy mocking and testing of the Zoom client
type ClientAPI interface {
	RequestAccessToken(ctx context.Context) (models.AccessToken, error)
	GetParticipantsReportPage(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*domain.ParticipantsReportPage, error)
}

const (
	// BaseURL is the base URL for Zoom API
	BaseURL = "https://api.zoom.us/v2"
	// AuthURL is the OAuth token endpoint
	AuthURL = "https://zoom.us/oauth/token"
	// DefaultClientTimeout is the default HTTP client timeout for Zoom API requests
	DefaultClientTimeout = 30 * time.Second
	// DefaultPageSize is the largest page the reports API accepts
	DefaultPageSize = 300
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Client represents a Zoom API client
type Client struct {
	httpClient  *http.Client
	config      Config
	oauthConfig *clientcredentials.Config
}

// Config holds the configuration for the Zoom client
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override auth URL for testing
	AuthURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: participants report page size
	PageSize int
	// Optional: retry configuration. A negative MaxRetries disables retries.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Ensure that Client implements ClientAPI and the domain ports
var (
	_ ClientAPI                       = (*Client)(nil)
	_ domain.AccessTokenProvider      = (*Client)(nil)
	_ domain.ParticipantsReportClient = (*Client)(nil)
)

// NewClient creates a new Zoom API client
func NewClient(config Config) *Client {
	// Set defaults if not provided
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = AuthURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.PageSize <= 0 || config.PageSize > DefaultPageSize {
		config.PageSize = DefaultPageSize
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	} else if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}

	// Zoom Server-to-Server OAuth requires specific grant_type and account_id,
	// with the client credentials sent as basic auth.
	oauthConfig := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.AuthURL,
		EndpointParams: url.Values{
			"grant_type": []string{"account_credentials"},
			"account_id": []string{config.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config:      config,
		oauthConfig: oauthConfig,
	}
}

// RequestAccessToken performs the account_credentials grant. It is called
// once per cache miss and is never retried.
func (c *Client) RequestAccessToken(ctx context.Context) (models.AccessToken, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "request_access_token"))
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauthConfig.Token(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to obtain Zoom access token", logging.ErrKey, err)
		return models.AccessToken{}, fmt.Errorf("failed to obtain zoom access token: %w", err)
	}
	if tok.AccessToken == "" {
		return models.AccessToken{}, fmt.Errorf("zoom token endpoint returned an empty access token")
	}

	now := time.Now()
	ttl := models.DefaultAccessTokenTTL
	if !tok.Expiry.IsZero() {
		if remaining := tok.Expiry.Sub(now); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
	}

	slog.DebugContext(ctx, "obtained Zoom access token", "ttl", ttl.String())

	return models.AccessToken{
		Value:      tok.AccessToken,
		IssuedAt:   now,
		TTLSeconds: int64(ttl / time.Second),
	}, nil
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	// Don't retry if context was cancelled
	if err != nil {
		if ctx, ok := err.(interface{ Err() error }); ok {
			if ctx.Err() == context.Canceled || ctx.Err() == context.DeadlineExceeded {
				return false
			}
		}
	}

	// Retry on network/connection errors
	if err != nil {
		return true
	}

	// Retry on server errors (5xx)
	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// Retry on rate limiting (429)
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	// Don't retry on client errors (4xx)
	return false
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)

	if backoffWithJitter < c.config.InitialBackoff {
		backoffWithJitter = c.config.InitialBackoff
	}

	return backoffWithJitter
}

// doRequest performs a bearer-authenticated HTTP request to the Zoom API with retry logic
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, token models.AccessToken) (*http.Response, error) {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		req, err := c.createRequest(ctx, method, target, token)
		if err != nil {
			return nil, err
		}

		c.logRequestAttempt(ctx, method, path, attempt)

		startTime := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(startTime)

		if c.isRequestSuccessful(err, resp) {
			c.logSuccessfulResponse(ctx, method, path, resp, duration, attempt)
			return resp, nil
		}

		lastErr, lastResp = err, c.closeAndReplaceResponse(lastResp, resp)
		statusCode := c.extractStatusCode(resp)

		if !shouldRetry(statusCode, err) {
			c.logNonRetryableError(ctx, method, path, statusCode, duration, attempt, err)
			break
		}

		if attempt < c.config.MaxRetries {
			if err := c.handleRetryDelay(ctx, method, path, statusCode, duration, attempt, err, lastResp); err != nil {
				return nil, err
			}
		} else {
			c.logFinalFailure(ctx, method, path, statusCode, duration, attempt, err)
		}
	}

	return c.handleFinalResult(ctx, method, path, lastErr, lastResp)
}

// createRequest creates a new HTTP request carrying the bearer token
func (c *Client) createRequest(ctx context.Context, method, target string, token models.AccessToken) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: token.Value, TokenType: "Bearer"}).SetAuthHeader(req)
	return req, nil
}

func (c *Client) logRequestAttempt(ctx context.Context, method, path string, attempt int) {
	if attempt == 0 {
		slog.DebugContext(ctx, "making Zoom API request",
			"method", method,
			"path", path,
			"max_retries", c.config.MaxRetries,
		)
	} else {
		slog.DebugContext(ctx, "retrying Zoom API request",
			"method", method,
			"path", path,
			"attempt", attempt,
			"max_retries", c.config.MaxRetries,
		)
	}
}

// isRequestSuccessful checks if a request was successful (no error and not a server error/rate limit)
func (c *Client) isRequestSuccessful(err error, resp *http.Response) bool {
	return err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests
}

// closeAndReplaceResponse closes the old response if it exists and returns the new one
func (c *Client) closeAndReplaceResponse(oldResp, newResp *http.Response) *http.Response {
	if oldResp != nil && newResp != nil {
		_ = oldResp.Body.Close()
	}
	if newResp == nil {
		return oldResp
	}
	return newResp
}

func (c *Client) extractStatusCode(resp *http.Response) int {
	if resp != nil {
		return resp.StatusCode
	}
	return 0
}

func (c *Client) logSuccessfulResponse(ctx context.Context, method, path string, resp *http.Response, duration time.Duration, attempt int) {
	slog.InfoContext(ctx, "Zoom API request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", duration.String(),
		"attempt", attempt+1,
	)

	// 4xx is returned to the caller without retrying
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		slog.ErrorContext(ctx, "Zoom API error response",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"duration", duration.String(),
			"body", string(body),
			logging.ErrKey, fmt.Errorf("status: %d", resp.StatusCode))
	}
}

func (c *Client) logNonRetryableError(ctx context.Context, method, path string, statusCode int, duration time.Duration, attempt int, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "Zoom API request failed (not retryable)",
			"method", method,
			"path", path,
			"duration", duration.String(),
			"attempt", attempt+1,
			logging.ErrKey, err)
	} else {
		slog.ErrorContext(ctx, "Zoom API request failed (not retryable)",
			"method", method,
			"path", path,
			"status", statusCode,
			"duration", duration.String(),
			"attempt", attempt+1)
	}
}

// handleRetryDelay waits out the backoff unless the context ends first
func (c *Client) handleRetryDelay(ctx context.Context, method, path string, statusCode int, duration time.Duration, attempt int, err error, lastResp *http.Response) error {
	backoff := c.calculateBackoff(attempt)
	slog.WarnContext(ctx, "Zoom API request failed, retrying",
		"method", method,
		"path", path,
		"status", statusCode,
		"duration", duration.String(),
		"attempt", attempt+1,
		"max_retries", c.config.MaxRetries,
		"backoff", backoff.String(),
		logging.ErrKey, err)

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logFinalFailure(ctx context.Context, method, path string, statusCode int, duration time.Duration, attempt int, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "Zoom API request failed after all retries",
			"method", method,
			"path", path,
			"duration", duration.String(),
			"attempts", attempt+1,
			"max_retries", c.config.MaxRetries,
			logging.ErrKey, err,
			logging.PriorityCritical())
	} else {
		slog.ErrorContext(ctx, "Zoom API request failed after all retries",
			"method", method,
			"path", path,
			"status", statusCode,
			"duration", duration.String(),
			"attempts", attempt+1,
			"max_retries", c.config.MaxRetries,
			logging.PriorityCritical())
	}
}

// handleFinalResult handles the final result after all retry attempts
func (c *Client) handleFinalResult(ctx context.Context, method, path string, lastErr error, lastResp *http.Response) (*http.Response, error) {
	if lastErr != nil {
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
	}

	if lastResp != nil && lastResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(lastResp.Body)
		_ = lastResp.Body.Close()
		lastResp.Body = io.NopCloser(bytes.NewReader(body))
		slog.ErrorContext(ctx, "Zoom API error response after all retries",
			"method", method,
			"path", path,
			"status", lastResp.StatusCode,
			"body", string(body),
			"attempts", c.config.MaxRetries+1,
			logging.ErrKey, fmt.Errorf("status: %d", lastResp.StatusCode),
			logging.PriorityCritical())
	}

	return lastResp, nil
}

// parseErrorResponse attempts to parse a Zoom API error response
func parseErrorResponse(body []byte) error {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("zoom API error (code %d): %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("zoom API error: %s", string(body))
}
