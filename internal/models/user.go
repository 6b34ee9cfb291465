package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Handle       string    `gorm:"uniqueIndex:idx_users_handle;size:12;not null"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex:idx_users_email;not null"`
	PasswordHash string    `gorm:"not null"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
}
