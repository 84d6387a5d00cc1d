package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whisperwall/secrets-backend/internal/config"
	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/store"
)

// ErrInvalidSession is the single outcome for any token that cannot be
// restored: bad signature, expired, revoked, or a user that no longer
// exists. It is treated as "unauthenticated", never as a hard error.
var ErrInvalidSession = errors.New("invalid session")

// SessionManager issues, restores, and revokes session tokens. The token is
// a signed JWT carrying only the user id; everything else is re-read from
// the store on every restore so credential or secret changes take effect on
// the next request.
type SessionManager struct {
	db     *gorm.DB
	users  *store.UserStore
	secret []byte
	expiry time.Duration
}

func NewSessionManager(db *gorm.DB, users *store.UserStore, cfg *config.Config) *SessionManager {
	return &SessionManager{
		db:     db,
		users:  users,
		secret: []byte(cfg.SessionSecret),
		expiry: cfg.SessionExpiry,
	}
}

// Establish signs a token for the user and records its hash so Terminate can
// revoke it later. The payload is the user id and nothing else: no password
// hashes, no provider ids, no secret content.
func (m *SessionManager) Establish(ctx context.Context, user *models.User) (string, error) {
	now := time.Now()
	expiresAt := now.Add(m.expiry)

	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	record := models.SessionToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: expiresAt,
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return token, nil
}

// Restore turns a token back into the current user record, or
// ErrInvalidSession. Store outages surface as ErrStoreUnavailable rather
// than silently invalidating live sessions.
func (m *SessionManager) Restore(ctx context.Context, token string) (*models.User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidSession
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidSession
	}

	var record models.SessionToken
	err = m.db.WithContext(ctx).
		First(&record, "token_hash = ? AND revoked = ?", hashToken(token), false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}

// Terminate revokes the token. Unknown or already-revoked tokens are a
// no-op: the end state, an unusable token, is the same.
func (m *SessionManager) Terminate(ctx context.Context, token string) error {
	err := m.db.WithContext(ctx).
		Model(&models.SessionToken{}).
		Where("token_hash = ?", hashToken(token)).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
