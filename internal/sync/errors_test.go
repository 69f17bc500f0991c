// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			},
		},
		{
			name:   "too many requests",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.True(t, IsRateLimited(err))
			},
		},
		{
			name:   "forbidden with exhausted quota",
			status: http.StatusForbidden,
			header: http.Header{"X-Ratelimit-Remaining": []string{"0"}},
			check: func(t *testing.T, err error) {
				assert.True(t, IsRateLimited(err))
			},
		},
		{
			name:   "plain forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthenticationFailed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			tt.check(t, classifyStatus(tt.status, header, []byte("body")))
		})
	}
}

func TestRetryAfterDelay(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), retryAfterDelay(h))

	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, retryAfterDelay(h))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
	d := retryAfterDelay(h)
	assert.Greater(t, d, 50*time.Second)
	assert.LessOrEqual(t, d, time.Minute)
}

func TestRateLimitedErrorMessage(t *testing.T) {
	err := &RateLimitedError{RetryAfter: 90 * time.Second}
	assert.Contains(t, err.Error(), "1m30s")
	assert.Equal(t, "rate limited", (&RateLimitedError{}).Error())
}
