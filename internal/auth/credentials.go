// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/remcostoeten/pulse/internal/config"
)

// VerifyCredentials checks a login attempt against the configured admin
// account. The username comparison is constant-time and a bcrypt check
// runs even on a username mismatch, so response timing does not reveal
// which half was wrong.
func VerifyCredentials(cfg config.SecurityConfig, username, password string) error {
	if !cfg.AdminLoginEnabled() {
		return ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.AdminUsername)) == 1
	hashErr := bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(password))

	if !userOK || hashErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
