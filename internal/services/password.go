package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/store"
)

var (
	ErrUsernameTaken = errors.New("username already registered")

	// ErrInvalidCredentials covers both unknown-username and wrong-password.
	// The two cases are deliberately indistinguishable so a login attempt
	// cannot probe for account existence.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// PasswordAuthenticator handles local accounts: registration and
// username/password verification. Session establishment is an explicit
// separate step the caller takes after either succeeds.
type PasswordAuthenticator struct {
	users *store.UserStore
}

func NewPasswordAuthenticator(users *store.UserStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users}
}

// Register creates a local account. The password is stored only as a bcrypt
// hash (bcrypt embeds a fresh per-user salt). The username unique index is
// the duplicate guard, so a concurrent duplicate cannot slip past a
// check-then-create window.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || len(password) < 8 {
		return nil, errors.New("username required and password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashStr := string(hash)
	user, err := a.users.Create(ctx, &models.User{
		Username:     &username,
		PasswordHash: &hashStr,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies a username/password pair. Any mismatch, including a
// username that does not exist or belongs to a federated-only account,
// returns ErrInvalidCredentials. Store failures pass through unchanged.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
