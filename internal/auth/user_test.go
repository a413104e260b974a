// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates user with no session and no pending reset", func(t *testing.T) {
		user, err := auth.NewUser("a@x.com", "somehash")
		require.NoError(t, err)

		assert.Equal(t, "a@x.com", user.Email)
		assert.Equal(t, "somehash", user.PasswordHash)
		assert.Nil(t, user.SessionID)
		assert.Nil(t, user.ResetToken)
		assert.False(t, user.LoggedIn())
		assert.False(t, user.PendingReset())
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("assigns distinct IDs", func(t *testing.T) {
		u1, err := auth.NewUser("a@x.com", "hash")
		require.NoError(t, err)
		u2, err := auth.NewUser("b@x.com", "hash")
		require.NoError(t, err)
		assert.NotEqual(t, u1.ID, u2.ID)
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewUser("a@x.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_EMPTY_HASH")
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := auth.NewUser("not-an-email", "hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
	})
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "plain address", email: "user@example.com", wantErr: false},
		{name: "subdomain", email: "user@mail.example.com", wantErr: false},
		{name: "plus tag", email: "user+tag@example.com", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "no at sign", email: "userexample.com", wantErr: true},
		{name: "no domain dot", email: "user@localhost", wantErr: true},
		{name: "two at signs", email: "a@b@example.com", wantErr: true},
		{name: "whitespace", email: "user @example.com", wantErr: true},
		{name: "too long", email: strings.Repeat("a", 250) + "@x.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrInvalidEmail)
				errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUser_StateAccessors(t *testing.T) {
	user, err := auth.NewUser("a@x.com", "hash")
	require.NoError(t, err)

	session := "sessiondigest"
	user.SessionID = &session
	assert.True(t, user.LoggedIn())

	reset := "resetdigest"
	user.ResetToken = &reset
	assert.True(t, user.PendingReset())

	user.SessionID = nil
	user.ResetToken = nil
	assert.False(t, user.LoggedIn())
	assert.False(t, user.PendingReset())
}
