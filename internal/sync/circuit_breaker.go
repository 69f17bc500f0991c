// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
	"github.com/remcostoeten/pulse/internal/models"
)

// GitHubAPI is the surface the orchestrator and read API consume.
// Implemented by GitHubClient directly and by GitHubBreakerClient for
// production use.
type GitHubAPI interface {
	ListRecentCommits(ctx context.Context, repo string, since time.Time, perPage int) ([]models.CommitRecord, error)
	GetLatestCommit(ctx context.Context, repo string) (*models.CommitRecord, error)
	GetRepoMeta(ctx context.Context, repo string) (*models.RepoMeta, error)
	GetContributionCalendar(ctx context.Context, from, to time.Time) (*models.ContributionCalendar, error)
}

// SpotifyAPI is the Spotify surface consumed downstream.
type SpotifyAPI interface {
	GetCurrentlyPlaying(ctx context.Context) (*models.NowPlaying, error)
	GetRecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.SpotifyListen, error)
}

// newBreaker builds a circuit breaker with shared settings:
//   - 3 concurrent probes in half-open state
//   - 1 minute measurement window, 2 minute open period
//   - opens at a 60% failure rate over at least 10 requests
//
// DETERMINISM NOTE: the breaker runs on real time. That is intentional;
// its timing governs recovery, not data integrity. Unit tests exercise
// the wrapped clients directly.
func newBreaker(name string) *gobreaker.CircuitBreaker[interface{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "open"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// castResult type-casts a breaker result, preserving the original error.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// GitHubBreakerClient wraps GitHubClient with circuit breaker
// protection. When GitHub is down the breaker opens and calls fail fast
// as ErrUpstreamUnavailable instead of stacking up timeouts.
type GitHubBreakerClient struct {
	client *GitHubClient
	cb     *gobreaker.CircuitBreaker[interface{}]
}

// NewGitHubBreakerClient wraps a GitHub client with a circuit breaker.
func NewGitHubBreakerClient(client *GitHubClient) *GitHubBreakerClient {
	return &GitHubBreakerClient{client: client, cb: newBreaker("github-api")}
}

func (c *GitHubBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open: %v", ErrUpstreamUnavailable, err)
	}
	return result, err
}

func (c *GitHubBreakerClient) ListRecentCommits(ctx context.Context, repo string, since time.Time, perPage int) ([]models.CommitRecord, error) {
	return castResult[[]models.CommitRecord](c.execute(func() (interface{}, error) {
		return c.client.ListRecentCommits(ctx, repo, since, perPage)
	}))
}

func (c *GitHubBreakerClient) GetLatestCommit(ctx context.Context, repo string) (*models.CommitRecord, error) {
	return castResult[*models.CommitRecord](c.execute(func() (interface{}, error) {
		return c.client.GetLatestCommit(ctx, repo)
	}))
}

func (c *GitHubBreakerClient) GetRepoMeta(ctx context.Context, repo string) (*models.RepoMeta, error) {
	return castResult[*models.RepoMeta](c.execute(func() (interface{}, error) {
		return c.client.GetRepoMeta(ctx, repo)
	}))
}

func (c *GitHubBreakerClient) GetContributionCalendar(ctx context.Context, from, to time.Time) (*models.ContributionCalendar, error) {
	return castResult[*models.ContributionCalendar](c.execute(func() (interface{}, error) {
		return c.client.GetContributionCalendar(ctx, from, to)
	}))
}

// SpotifyBreakerClient wraps SpotifyClient with circuit breaker
// protection.
type SpotifyBreakerClient struct {
	client *SpotifyClient
	cb     *gobreaker.CircuitBreaker[interface{}]
}

// NewSpotifyBreakerClient wraps a Spotify client with a circuit breaker.
func NewSpotifyBreakerClient(client *SpotifyClient) *SpotifyBreakerClient {
	return &SpotifyBreakerClient{client: client, cb: newBreaker("spotify-api")}
}

func (c *SpotifyBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open: %v", ErrUpstreamUnavailable, err)
	}
	return result, err
}

func (c *SpotifyBreakerClient) GetCurrentlyPlaying(ctx context.Context) (*models.NowPlaying, error) {
	return castResult[*models.NowPlaying](c.execute(func() (interface{}, error) {
		return c.client.GetCurrentlyPlaying(ctx)
	}))
}

func (c *SpotifyBreakerClient) GetRecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.SpotifyListen, error) {
	return castResult[[]models.SpotifyListen](c.execute(func() (interface{}, error) {
		return c.client.GetRecentlyPlayed(ctx, limit, after)
	}))
}
