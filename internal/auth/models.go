package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserModel mirrors the users table.
type UserModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Email        string         `gorm:"not null;uniqueIndex:uniq_users_email"`
	FullName     string         `gorm:"not null"`
	PasswordHash string         `gorm:"not null"`
	Roles        datatypes.JSON `gorm:"not null;default:'[\"member\"]'"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

func (user *UserModel) BeforeCreate(tx *gorm.DB) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return nil
}

// AutoMigrate creates the auth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}
