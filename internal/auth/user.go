// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength bounds stored email addresses.
const MaxEmailLength = 254

// emailRegex is a pragmatic address check: one @, non-empty local part,
// domain with at least one dot. Deliverability is not this package's job.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents a registered account.
//
// SessionID and ResetToken hold SHA-256 hex digests of the issued tokens,
// never the plaintext values. A nil SessionID means logged out; a nil
// ResetToken means no reset is pending.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	SessionID    *string
	ResetToken   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with no active session and no pending
// reset. The password hash must already be computed by a PasswordHasher.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_EMPTY_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// LoggedIn reports whether the user currently holds an active session.
func (u *User) LoggedIn() bool {
	return u.SessionID != nil
}

// PendingReset reports whether a password reset request is outstanding.
func (u *User) PendingReset() bool {
	return u.ResetToken != nil
}

// ValidateEmail validates an email address against rules.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("USER_INVALID_EMAIL").Wrapf(ErrInvalidEmail, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("USER_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidEmail, "email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("USER_INVALID_EMAIL").Wrapf(ErrInvalidEmail, "email address is malformed")
	}
	return nil
}

// UserRepository manages user persistence.
//
// The updatable fields form a closed set: session digest, reset digest, and
// the password-hash/reset pair. There is no generic field update, so an
// unknown-field error cannot exist at this boundary.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken if the email is
	// already registered; the store must be left unchanged in that case.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound on a miss.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound on a miss.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetBySessionID retrieves the user holding the given session digest.
	// Returns ErrNotFound on a miss.
	GetBySessionID(ctx context.Context, sessionID string) (*User, error)

	// SetSession stores a session digest for the user, replacing any
	// previous one. Returns ErrNotFound if the user does not exist.
	SetSession(ctx context.Context, id ulid.ULID, sessionID string) error

	// ClearSession removes the user's session digest, logging them out.
	// Returns ErrNotFound if the user does not exist.
	ClearSession(ctx context.Context, id ulid.ULID) error

	// SetResetToken stores a reset digest for the user, replacing any
	// previous one. Returns ErrNotFound if the user does not exist.
	SetResetToken(ctx context.Context, id ulid.ULID, resetToken string) error

	// ConsumeResetToken atomically sets the password hash and clears the
	// reset digest on the single user holding it. Returns ErrNotFound if
	// no user holds the digest, which makes consumption single-use.
	ConsumeResetToken(ctx context.Context, resetToken, passwordHash string) error
}
