// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package token

import (
	"context"

	"github.com/remcostoeten/pulse/internal/config"
)

// NewGitHubStatic builds the RefreshFunc for GitHub. GitHub personal
// access tokens do not expire and have no refresh exchange, so a
// "refresh" re-reads the configured token. This keeps the 401
// invalidate-and-retry path uniform across providers: after an
// invalidation the same PAT is retried once, and a second 401 surfaces as
// an authentication failure (revoked token).
func NewGitHubStatic(cfg config.GitHubConfig) RefreshFunc {
	return func(_ context.Context, _ Token) (Token, error) {
		if cfg.Token == "" {
			return Token{}, ErrConfigMissing
		}
		return Token{Value: cfg.Token}, nil
	}
}
