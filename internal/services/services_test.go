package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whisperwall/secrets-backend/internal/config"
	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/secrets"
	"github.com/whisperwall/secrets-backend/internal/store"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type testEnv struct {
	db       *gorm.DB
	users    *store.UserStore
	auth     *PasswordAuthenticator
	resolver *FederatedResolver
	sessions *SessionManager
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
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

	codec, err := secrets.NewCodec(testEncryptionKey)
	require.NoError(t, err)
	users := store.NewUserStore(db, codec)

	cfg := &config.Config{
		SessionSecret: "test-session-secret",
		SessionExpiry: time.Hour,
	}

	return &testEnv{
		db:       db,
		users:    users,
		auth:     NewPasswordAuthenticator(users),
		resolver: NewFederatedResolver(users),
		sessions: NewSessionManager(db, users, cfg),
		cfg:      cfg,
	}
}
