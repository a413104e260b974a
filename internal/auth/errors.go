// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when registering an email that already has a user.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidEmail is returned when an email address fails validation.
// Callers can branch on it with errors.Is to treat the failure as client
// input rather than an internal fault.
var ErrInvalidEmail = errors.New("invalid email address")
