// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements the credential and session lifecycle for Gatehouse.
//
// # Domain Types
//
// User is the single persisted entity. Create it with NewUser, which
// validates the email and rejects empty password hashes. Direct struct
// initialization bypasses validation and may create invalid state.
//
// # Service
//
// Service coordinates the lifecycle operations: registration, login
// validation, session issuance and destruction, reset-token issuance and
// consumption. It owns every business invariant; repositories are dumb
// persistence and the HTTP layer is dumb transport.
//
// Session and reset tokens are opaque 32-byte random values. Clients hold
// the plaintext; only the SHA-256 of a token is ever stored.
package auth
