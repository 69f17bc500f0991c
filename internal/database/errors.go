// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package database

import "errors"

// ErrNotFound indicates the requested row does not exist. Callers treat
// an empty store as a normal condition, not a failure.
var ErrNotFound = errors.New("record not found")
