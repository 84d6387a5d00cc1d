package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/secrets"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.SessionToken{}))
	return db
}

func newTestStore(t *testing.T) (*UserStore, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	codec, err := secrets.NewCodec(testEncryptionKey)
	require.NoError(t, err)
	return NewUserStore(db, codec), db
}

func strptr(s string) *string { return &s }

func TestCreateAndFindByID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &models.User{Username: strptr("alice@example.com"), PasswordHash: strptr("$2a$10$hash")})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "alice@example.com", *found.Username)
}

func TestFindByIDNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByUsernameNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.FindByUsername(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateUsername(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, &models.User{Username: strptr("alice@example.com"), PasswordHash: strptr("hash1")})
	require.NoError(t, err)

	_, err = s.Create(ctx, &models.User{Username: strptr("alice@example.com"), PasswordHash: strptr("hash2")})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestCreateDuplicateSubjectID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, &models.User{GoogleID: strptr("g-123")})
	require.NoError(t, err)

	_, err = s.Create(ctx, &models.User{GoogleID: strptr("g-123")})
	assert.ErrorIs(t, err, ErrDuplicateSubjectID)
}

func TestProviderNamespacesIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	g, err := s.Create(ctx, &models.User{GoogleID: strptr("same-subject")})
	require.NoError(t, err)
	f, err := s.Create(ctx, &models.User{FacebookID: strptr("same-subject")})
	require.NoError(t, err)
	assert.NotEqual(t, g.ID, f.ID)

	foundG, err := s.FindByProviderID(ctx, ProviderGoogle, "same-subject")
	require.NoError(t, err)
	foundF, err := s.FindByProviderID(ctx, ProviderFacebook, "same-subject")
	require.NoError(t, err)
	assert.Equal(t, g.ID, foundG.ID)
	assert.Equal(t, f.ID, foundF.ID)
}

func TestFindByProviderIDUnknownProvider(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.FindByProviderID(context.Background(), Provider("github"), "x")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("google")
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, p)

	p, err = ParseProvider("facebook")
	require.NoError(t, err)
	assert.Equal(t, ProviderFacebook, p)

	_, err = ParseProvider("twitter")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSecretEncryptedAtRest(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	user, err := s.Create(ctx, &models.User{Username: strptr("alice@example.com"), PasswordHash: strptr("hash")})
	require.NoError(t, err)

	user.Secret = strptr("hello")
	require.NoError(t, s.Save(ctx, user))

	// The caller's copy keeps the plaintext.
	assert.Equal(t, "hello", *user.Secret)

	// The stored column does not.
	var raw string
	require.NoError(t, db.Raw("SELECT secret FROM users WHERE id = ?", user.ID).Scan(&raw).Error)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, "hello", raw)
	assert.NotContains(t, raw, "hello")

	// Reads decrypt transparently.
	found, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Secret)
	assert.Equal(t, "hello", *found.Secret)
}

func TestSaveClearsSecret(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.Create(ctx, &models.User{Username: strptr("alice@example.com"), PasswordHash: strptr("hash")})
	require.NoError(t, err)

	user.Secret = strptr("hello")
	require.NoError(t, s.Save(ctx, user))

	user.Secret = nil
	require.NoError(t, s.Save(ctx, user))

	found, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Secret)
}

func TestListSecrets(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, &models.User{Username: strptr("a@example.com"), PasswordHash: strptr("h")})
	require.NoError(t, err)
	a.Secret = strptr("first secret")
	require.NoError(t, s.Save(ctx, a))

	b, err := s.Create(ctx, &models.User{GoogleID: strptr("g-1")})
	require.NoError(t, err)
	b.Secret = strptr("second secret")
	require.NoError(t, s.Save(ctx, b))

	// No secret yet, must not appear.
	_, err = s.Create(ctx, &models.User{FacebookID: strptr("f-1")})
	require.NoError(t, err)

	list, err := s.ListSecrets(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first secret", "second secret"}, list)
}

func TestListSecretsCorruptCiphertext(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, &models.User{GoogleID: strptr("g-1")})
	require.NoError(t, err)
	u.Secret = strptr("hello")
	require.NoError(t, s.Save(ctx, u))

	require.NoError(t, db.Exec("UPDATE users SET secret = ? WHERE id = ?", "garbage-not-ciphertext", u.ID).Error)

	_, err = s.ListSecrets(ctx)
	assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
}
