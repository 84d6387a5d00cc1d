package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User is the canonical identity record. A user may carry any mix of a local
// password credential and federated provider ids, but always at least one.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     *string        `gorm:"size:255;uniqueIndex" json:"username,omitempty"`
	PasswordHash *string        `gorm:"size:100" json:"-"`
	GoogleID     *string        `gorm:"size:255;uniqueIndex" json:"-"`
	FacebookID   *string        `gorm:"size:255;uniqueIndex" json:"-"`
	Secret       *string        `gorm:"type:text" json:"-"`
	Profile      datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HasLocalCredential reports whether the user can log in with a password.
func (u *User) HasLocalCredential() bool {
	return u.Username != nil && u.PasswordHash != nil
}
