// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memory provides an in-memory auth.UserRepository for tests and
// single-process development runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Repository implements auth.UserRepository with mutex-guarded maps.
// Every access operates on copies, so callers can't mutate stored state
// behind the lock's back.
type Repository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID // lowercased email -> id
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new user.
func (r *Repository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return auth.ErrEmailTaken
	}

	r.byID[user.ID] = cloneUser(user)
	r.byEmail[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(user), nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *Repository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

// GetBySessionID retrieves the user holding the given session digest.
func (r *Repository) GetBySessionID(_ context.Context, sessionID string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byID {
		if user.SessionID != nil && *user.SessionID == sessionID {
			return cloneUser(user), nil
		}
	}
	return nil, auth.ErrNotFound
}

// SetSession stores a session digest for the user.
func (r *Repository) SetSession(_ context.Context, id ulid.ULID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	user.SessionID = &sessionID
	user.UpdatedAt = time.Now()
	return nil
}

// ClearSession removes the user's session digest.
func (r *Repository) ClearSession(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	user.SessionID = nil
	user.UpdatedAt = time.Now()
	return nil
}

// SetResetToken stores a reset digest for the user.
func (r *Repository) SetResetToken(_ context.Context, id ulid.ULID, resetToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	user.ResetToken = &resetToken
	user.UpdatedAt = time.Now()
	return nil
}

// ConsumeResetToken atomically updates the password hash and clears the
// reset digest on the user holding it.
func (r *Repository) ConsumeResetToken(_ context.Context, resetToken, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.byID {
		if user.ResetToken != nil && *user.ResetToken == resetToken {
			user.PasswordHash = passwordHash
			user.ResetToken = nil
			user.UpdatedAt = time.Now()
			return nil
		}
	}
	return auth.ErrNotFound
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		s := *u.ResetToken
		c.ResetToken = &s
	}
	return &c
}

// Compile-time interface check.
var _ auth.UserRepository = (*Repository)(nil)
