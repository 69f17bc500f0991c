// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/token"
)

const (
	// DefaultGitHubAPIURL is the GitHub REST v3 endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"
	// DefaultGitHubGraphQLURL is the GraphQL v4 endpoint, used only for
	// the contribution calendar, which REST does not expose.
	DefaultGitHubGraphQLURL = "https://api.github.com/graphql"

	githubAPIVersion = "2022-11-28"
	shortHashLen     = 7
)

// GitHubClient fetches commit history, repository metadata, and the
// contribution calendar.
//
// Thread Safety: safe for concurrent use.
type GitHubClient struct {
	core       *providerCore
	login      string
	baseURL    string
	graphqlURL string
}

// NewGitHubClient creates a GitHub API client. Empty URLs select the
// production endpoints; tests point them at a local server.
func NewGitHubClient(login string, tokens *token.Cache, client *http.Client, baseURL, graphqlURL string) *GitHubClient {
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	if graphqlURL == "" {
		graphqlURL = DefaultGitHubGraphQLURL
	}
	return &GitHubClient{
		core:       newProviderCore(models.ProviderGitHub, tokens, client),
		login:      login,
		baseURL:    baseURL,
		graphqlURL: graphqlURL,
	}
}

func (c *GitHubClient) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", githubAPIVersion)
	return h
}

// githubCommit is the raw REST commit payload, reduced to what we keep.
type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// ListRecentCommits returns commits for one repo pushed since the given
// time, newest first, normalized to CommitRecord.
func (c *GitHubClient) ListRecentCommits(ctx context.Context, repo string, since time.Time, perPage int) ([]models.CommitRecord, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 30
	}
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	reqURL := fmt.Sprintf("%s/repos/%s/commits?%s", c.baseURL, repo, params.Encode())

	var raw []githubCommit
	if _, err := c.core.getJSON(ctx, "list_commits", reqURL, c.header(), &raw); err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", repo, err)
	}

	commits := make([]models.CommitRecord, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, normalizeCommit(repo, rc))
	}
	return commits, nil
}

// GetLatestCommit returns the newest commit of one repo. A repo that
// does not exist upstream returns ErrNotFound.
func (c *GitHubClient) GetLatestCommit(ctx context.Context, repo string) (*models.CommitRecord, error) {
	commits, err := c.ListRecentCommits(ctx, repo, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("%w: repo %s has no commits", ErrNotFound, repo)
	}
	return &commits[0], nil
}

// GetRepoMeta returns normalized repository metadata.
func (c *GitHubClient) GetRepoMeta(ctx context.Context, repo string) (*models.RepoMeta, error) {
	var raw struct {
		FullName        string    `json:"full_name"`
		Description     string    `json:"description"`
		HTMLURL         string    `json:"html_url"`
		StargazersCount int       `json:"stargazers_count"`
		ForksCount      int       `json:"forks_count"`
		PushedAt        time.Time `json:"pushed_at"`
	}
	reqURL := fmt.Sprintf("%s/repos/%s", c.baseURL, repo)
	if _, err := c.core.getJSON(ctx, "get_repo", reqURL, c.header(), &raw); err != nil {
		return nil, fmt.Errorf("failed to get repo %s: %w", repo, err)
	}
	return &models.RepoMeta{
		FullName:    raw.FullName,
		Description: raw.Description,
		URL:         raw.HTMLURL,
		Stars:       raw.StargazersCount,
		Forks:       raw.ForksCount,
		PushedAt:    raw.PushedAt,
	}, nil
}

// contributionsQuery asks GraphQL for the calendar; REST has no
// equivalent endpoint.
const contributionsQuery = `query($login: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $login) {
    contributionsCollection(from: $from, to: $to) {
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            date
            contributionCount
            contributionLevel
          }
        }
      }
    }
  }
}`

// contributionLevels maps the GraphQL enum to the 0-4 intensity scale
// the frontend renders.
var contributionLevels = map[string]int{
	"NONE":            0,
	"FIRST_QUARTILE":  1,
	"SECOND_QUARTILE": 2,
	"THIRD_QUARTILE":  3,
	"FOURTH_QUARTILE": 4,
}

// GetContributionCalendar returns the flattened contribution calendar
// for the configured login over [from, to].
func (c *GitHubClient) GetContributionCalendar(ctx context.Context, from, to time.Time) (*models.ContributionCalendar, error) {
	payload := map[string]interface{}{
		"query": contributionsQuery,
		"variables": map[string]string{
			"login": c.login,
			"from":  from.UTC().Format(time.RFC3339),
			"to":    to.UTC().Format(time.RFC3339),
		},
	}

	var raw struct {
		Data struct {
			User *struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						TotalContributions int `json:"totalContributions"`
						Weeks              []struct {
							ContributionDays []struct {
								Date              string `json:"date"`
								ContributionCount int    `json:"contributionCount"`
								ContributionLevel string `json:"contributionLevel"`
							} `json:"contributionDays"`
						} `json:"weeks"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	if _, err := c.core.postJSON(ctx, "contributions", c.graphqlURL, c.header(), payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	if len(raw.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql: %s", ErrUpstreamUnavailable, raw.Errors[0].Message)
	}
	if raw.Data.User == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, c.login)
	}

	cal := &models.ContributionCalendar{
		Login:              c.login,
		TotalContributions: raw.Data.User.ContributionsCollection.ContributionCalendar.TotalContributions,
		Days:               make([]models.ContributionDay, 0, 371),
	}
	for _, week := range raw.Data.User.ContributionsCollection.ContributionCalendar.Weeks {
		for _, day := range week.ContributionDays {
			cal.Days = append(cal.Days, models.ContributionDay{
				Date:  day.Date,
				Count: day.ContributionCount,
				Level: contributionLevels[day.ContributionLevel],
			})
		}
	}
	return cal, nil
}

func normalizeCommit(repo string, rc githubCommit) models.CommitRecord {
	short := rc.SHA
	if len(short) > shortHashLen {
		short = short[:shortHashLen]
	}
	committedAt, _ := time.Parse(time.RFC3339, rc.Commit.Author.Date)
	return models.CommitRecord{
		Hash:         rc.SHA,
		ShortHash:    short,
		Message:      rc.Commit.Message,
		AuthorName:   rc.Commit.Author.Name,
		RepoFullName: repo,
		URL:          rc.HTMLURL,
		CommittedAt:  committedAt,
	}
}
