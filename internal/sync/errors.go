// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Provider failures collapse into a small taxonomy so callers branch on
// category, never on raw status codes. The API layer maps each category
// to its own degradation: config-missing becomes a 200 with an
// explanatory message, not-found becomes a null-payload 200, and so on.
var (
	// ErrAuthenticationFailed: credentials were present but rejected,
	// still failing after one token refresh and retry.
	ErrAuthenticationFailed = errors.New("provider authentication failed")

	// ErrNotFound: the requested upstream resource does not exist.
	ErrNotFound = errors.New("upstream resource not found")

	// ErrTimeout: the request or sync run exceeded its deadline.
	ErrTimeout = errors.New("provider request timed out")

	// ErrUpstreamUnavailable: the provider returned a 5xx or was
	// unreachable.
	ErrUpstreamUnavailable = errors.New("provider unavailable")
)

// RateLimitedError reports an exhausted rate limit with the provider's
// suggested wait, when one was given.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// classifyStatus maps a non-success HTTP status to the error taxonomy.
// 401 is handled earlier (it triggers the invalidate-and-retry path);
// by the time it reaches here the retry has already failed.
func classifyStatus(status int, header http.Header, body []byte) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden && rateLimitRemaining(header) != "0":
		return fmt.Errorf("%w: status %d: %s", ErrAuthenticationFailed, status, body)
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		// GitHub signals primary rate limiting as 403 with
		// X-RateLimit-Remaining: 0; Spotify uses a plain 429.
		return &RateLimitedError{RetryAfter: retryAfterDelay(header)}
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, status, body)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, body)
	}
}

func rateLimitRemaining(header http.Header) string {
	return header.Get("X-RateLimit-Remaining")
}

// retryAfterDelay parses Retry-After (seconds form) or the GitHub
// X-RateLimit-Reset epoch into a wait duration. Zero when absent.
func retryAfterDelay(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}
