// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides the credential and session lifecycle operations.
// All session state lives in the repository; the service holds none.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a Service with the default logger.
func NewService(users UserRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, hasher, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{users: users, hasher: hasher, logger: logger}, nil
}

// Register creates a new user with a hashed password, no session, and no
// pending reset. Returns ErrEmailTaken if the email is already registered;
// the store is untouched on failure.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// ValidateLogin reports whether the email/password pair matches a registered
// user. Unknown emails and wrong passwords are both (false, nil); an error
// means the store or hasher failed, not that the credentials were bad.
// Uses a dummy hash for unknown emails to keep response time flat.
func (s *Service) ValidateLogin(ctx context.Context, email, password string) (bool, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return false, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// Dummy hash verification errors just mean invalid credentials.
		if !userExists {
			return false, nil
		}
		return false, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	return userExists && valid, nil
}

// CreateSession issues a fresh session token for the user with the given
// email and persists its digest, replacing any previous session. Returns
// ("", nil) if the email is unknown.
//
// CreateSession does not check the password. Callers must have validated
// credentials with ValidateLogin first; this two-step contract mirrors the
// login endpoint, which needs a 401 before a cookie is ever minted.
func (s *Service) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	// Concurrent logins race here; last writer wins and the loser's token
	// simply stops resolving.
	if err := s.users.SetSession(ctx, user.ID, hash); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, nil
}

// ResolveSession returns the user holding the given session token, or
// (nil, nil) if the token is empty or matches no active session. Pure
// lookup; nothing is mutated.
func (s *Service) ResolveSession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	user, err := s.users.GetBySessionID(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get user by session").
			Wrap(err)
	}

	// Recheck the stored digest against the presented token so a repository
	// that returns the wrong row cannot authenticate it.
	if !user.LoggedIn() || !VerifyToken(token, *user.SessionID) {
		return nil, nil
	}

	return user, nil
}

// DestroySession logs the user out by clearing their session digest.
// Idempotent: an unknown user ID or an already-cleared session is a no-op.
func (s *Service) DestroySession(ctx context.Context, userID ulid.ULID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if !user.LoggedIn() {
		return nil
	}

	if err := s.users.ClearSession(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "clear session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// IssueResetToken generates a password-reset token for the user with the
// given email, persisting its digest. Each call overwrites any prior
// pending token, so at most one reset token is live per user. Returns
// ErrNotFound if the email is unknown.
func (s *Service) IssueResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if user.PendingReset() {
		s.logger.InfoContext(ctx, "replacing pending reset token", "user_id", user.ID.String())
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, hash); err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "persist reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, nil
}

// ConsumePasswordReset updates the password of the user holding the given
// reset token and invalidates the token, in one atomic record-scoped write.
// Empty token or password is a guarded no-op, not an error. Returns
// ErrNotFound if no user holds the token - including the case where the
// same token is replayed after a successful consume.
func (s *Service) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.ConsumeResetToken(ctx, HashToken(token), hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password updated via reset token")
	return nil
}
