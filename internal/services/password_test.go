package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.auth.Register(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	require.NotNil(t, registered.Username)
	assert.Equal(t, "alice@example.com", *registered.Username)
	require.NotNil(t, registered.PasswordHash)
	assert.NotContains(t, *registered.PasswordHash, "password1")

	authed, err := env.auth.Authenticate(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, authed.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Register(ctx, "alice@example.com", "password1")
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, "alice@example.com", "different1")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// The first account's credential is untouched by the failed attempt.
	current, err := env.users.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.PasswordHash, *current.PasswordHash)

	_, err = env.auth.Authenticate(ctx, "alice@example.com", "password1")
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "", "password1")
	assert.Error(t, err)

	_, err = env.auth.Register(ctx, "alice@example.com", "short")
	assert.Error(t, err)
}

func TestAuthenticateFailuresAreUndifferentiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "alice@example.com", "password1")
	require.NoError(t, err)

	// Wrong password and unknown user return the very same sentinel.
	_, wrongPw := env.auth.Authenticate(ctx, "alice@example.com", "wrongpass")
	_, noUser := env.auth.Authenticate(ctx, "nobody@example.com", "password1")

	assert.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	assert.ErrorIs(t, noUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), noUser.Error())
}

func TestAuthenticateFederatedOnlyAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.resolver.ResolveOrCreate(ctx, "google", "g-123", nil)
	require.NoError(t, err)

	// A federated account has no username, so a password login against any
	// guess still fails with the same undifferentiated error.
	_, err = env.auth.Authenticate(ctx, "g-123", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
