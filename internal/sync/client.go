// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/token"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error payloads.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// providerCore is the request layer shared by both provider clients. It
// owns bearer-token injection, rate-limit backoff, and the
// invalidate-and-retry-once handling of upstream 401s.
type providerCore struct {
	provider       models.Provider
	tokens         *token.Cache
	client         *http.Client
	maxRetries     int           // retries for rate limiting only
	retryBaseDelay time.Duration // doubles each rate-limit retry
}

func newProviderCore(provider models.Provider, tokens *token.Cache, client *http.Client) *providerCore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &providerCore{
		provider:       provider,
		tokens:         tokens,
		client:         client,
		maxRetries:     3,
		retryBaseDelay: 1 * time.Second,
	}
}

// getJSON performs an authenticated GET and decodes the response into
// out. A nil out skips decoding; the status code is always returned so
// callers can branch on semantic statuses (Spotify's 204). op names the
// logical operation for metrics.
func (c *providerCore) getJSON(ctx context.Context, op, reqURL string, header http.Header, out interface{}) (int, error) {
	return c.doJSON(ctx, op, http.MethodGet, reqURL, header, nil, out)
}

// postJSON performs an authenticated POST with a JSON body.
func (c *providerCore) postJSON(ctx context.Context, op, reqURL string, header http.Header, payload, out interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request body: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return c.doJSON(ctx, op, http.MethodPost, reqURL, header, body, out)
}

// doJSON runs the request with one transparent retry after a 401: the
// cached token is invalidated, a fresh one is fetched, and the request
// is replayed exactly once. A second 401 surfaces as
// ErrAuthenticationFailed rather than looping.
func (c *providerCore) doJSON(ctx context.Context, op, method, reqURL string, header http.Header, body []byte, out interface{}) (int, error) {
	start := time.Now()
	status, err := c.attempt(ctx, method, reqURL, header, body, out)

	if status == http.StatusUnauthorized {
		logging.Debug().Str("provider", string(c.provider)).Msg("Upstream 401, invalidating token and retrying once")
		c.tokens.Invalidate(c.provider)
		status, err = c.attempt(ctx, method, reqURL, header, body, out)
		if status == http.StatusUnauthorized {
			err = fmt.Errorf("%w: still rejected after token refresh", ErrAuthenticationFailed)
		}
	}

	metrics.ObserveProviderRequest(string(c.provider), op, status, start)
	return status, err
}

// attempt performs one authenticated request with rate-limit backoff.
// Returns the final HTTP status (0 on transport failure) alongside any
// taxonomy error.
func (c *providerCore) attempt(ctx context.Context, method, reqURL string, header http.Header, body []byte, out interface{}) (int, error) {
	accessToken, err := c.tokens.GetAccessToken(ctx, c.provider)
	if err != nil {
		return 0, err
	}

	resp, err := c.doRequestWithRateLimit(ctx, method, reqURL, header, body, accessToken)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
		return resp.StatusCode, nil

	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil

	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil // caller decides: invalidate and retry

	default:
		return resp.StatusCode, classifyStatus(resp.StatusCode, resp.Header, readBodyForError(resp.Body))
	}
}

// doRequestWithRateLimit performs an HTTP request with automatic 429
// handling: exponential backoff (1s, 2s, 4s) honoring Retry-After when
// the provider sends one. The context cancels backoff waits.
func (c *providerCore) doRequestWithRateLimit(ctx context.Context, method, reqURL string, header http.Header, body []byte, accessToken string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, wrapTransportError(ctx.Err())
		}

		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, wrapTransportError(err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		retryAfter := retryAfterDelay(resp.Header)
		_ = resp.Body.Close()

		if attempt >= c.maxRetries {
			return nil, &RateLimitedError{RetryAfter: retryAfter}
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter > 0 {
			delay = retryAfter
		}
		logging.Debug().
			Str("provider", string(c.provider)).
			Dur("delay", delay).
			Int("attempt", attempt+1).
			Msg("Rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, wrapTransportError(ctx.Err())
		}
	}
}

// wrapTransportError maps transport-level failures to the taxonomy:
// deadline overruns become ErrTimeout, everything else means the
// provider was unreachable.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
