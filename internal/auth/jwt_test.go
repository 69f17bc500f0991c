// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/remcostoeten/pulse/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	_, err := NewJWTManager(config.SecurityConfig{JWTSecret: "too-short"})
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(t)

	token, expiresAt, err := m.GenerateToken("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := newTestManager(t)

	base := time.Now()
	m.now = func() time.Time { return base }
	token, _, err := m.GenerateToken("admin")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewJWTManager(config.SecurityConfig{
		JWTSecret:      "ffffffffffffffffffffffffffffffff",
		SessionTimeout: time.Hour,
	})
	require.NoError(t, err)

	token, _, err := m.GenerateToken("admin")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.SecurityConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	}

	assert.NoError(t, VerifyCredentials(cfg, "admin", "hunter2"))
	assert.ErrorIs(t, VerifyCredentials(cfg, "admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyCredentials(cfg, "intruder", "hunter2"), ErrInvalidCredentials)
}

func TestVerifyCredentialsDisabledAccount(t *testing.T) {
	err := VerifyCredentials(config.SecurityConfig{}, "admin", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
