// Package store is the persistence boundary for user records. It is the only
// package that reads or writes users through GORM, and the only place where
// the secret field crosses between plaintext and ciphertext.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/secrets"
)

var (
	// ErrNotFound is a normal outcome, not an infrastructure failure.
	// Callers branch on it explicitly.
	ErrNotFound = errors.New("user not found")

	ErrDuplicateUsername  = errors.New("username already registered")
	ErrDuplicateSubjectID = errors.New("provider subject already registered")

	// ErrStoreUnavailable wraps any datastore error that is not a uniqueness
	// conflict or a missing row.
	ErrStoreUnavailable = errors.New("user store unavailable")

	ErrUnknownProvider = errors.New("unknown identity provider")
)

// Provider tags the namespace a federated subject id belongs to. Subject ids
// are only ever compared within one provider's namespace.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider maps a wire-level provider name onto a known Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderGoogle, ProviderFacebook:
		return Provider(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// UserStore persists user records. Secrets are encrypted on the way in and
// decrypted on the way out, so callers above this layer never see ciphertext.
type UserStore struct {
	db    *gorm.DB
	codec *secrets.Codec
}

func NewUserStore(db *gorm.DB, codec *secrets.Codec) *UserStore {
	return &UserStore{db: db, codec: codec}
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	if err := s.decryptSecret(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, mapReadErr(err)
	}
	if err := s.decryptSecret(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByProviderID(ctx context.Context, provider Provider, subjectID string) (*models.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, column+" = ?", subjectID).Error; err != nil {
		return nil, mapReadErr(err)
	}
	if err := s.decryptSecret(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create assigns the id and persists a new user. A unique-index violation is
// mapped by which identity field the caller supplied: local registrations
// conflict on the username, federated first logins on the subject id. The
// insert is a single statement, so a losing concurrent create leaves no
// partial record behind.
func (s *UserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	rec := *user
	rec.ID = uuid.New()
	if err := s.encryptSecret(&rec); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if user.GoogleID != nil || user.FacebookID != nil {
				return nil, ErrDuplicateSubjectID
			}
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	created := rec
	created.Secret = user.Secret
	return &created, nil
}

// Save persists mutations to an existing user. The caller's struct keeps the
// plaintext secret; only the stored copy carries ciphertext.
func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	rec := *user
	if err := s.encryptSecret(&rec); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if user.Username != nil {
				return ErrDuplicateUsername
			}
			return ErrDuplicateSubjectID
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListSecrets returns the decrypted secret text of every user that has one.
// No user identifiers are attached; the shared listing is anonymous.
func (s *UserStore) ListSecrets(ctx context.Context) ([]string, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("secret IS NOT NULL AND secret <> ''").
		Order("updated_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]string, 0, len(users))
	for i := range users {
		if err := s.decryptSecret(&users[i]); err != nil {
			return nil, err
		}
		out = append(out, *users[i].Secret)
	}
	return out, nil
}

func (s *UserStore) encryptSecret(user *models.User) error {
	if user.Secret == nil {
		return nil
	}
	ct, err := s.codec.EncryptField(*user.Secret)
	if err != nil {
		return err
	}
	user.Secret = &ct
	return nil
}

func (s *UserStore) decryptSecret(user *models.User) error {
	if user.Secret == nil || *user.Secret == "" {
		return nil
	}
	plain, err := s.codec.DecryptField(*user.Secret)
	if err != nil {
		return err
	}
	user.Secret = &plain
	return nil
}

func providerColumn(provider Provider) (string, error) {
	switch provider {
	case ProviderGoogle:
		return "google_id", nil
	case ProviderFacebook:
		return "facebook_id", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

func mapReadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
