package models

import "time"

// Registration status values. A user must be approved before the chat view is reachable.
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// User represents a registered chat participant awaiting or past admin review.
type User struct {
	ID           uint                   `gorm:"primaryKey" json:"id"`
	Nickname     string                 `gorm:"size:64;uniqueIndex;not null" json:"nickname"`
	Email        string                 `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string                 `gorm:"size:128;not null" json:"-"`
	Status       string                 `gorm:"size:16;not null;default:pending" json:"status"`
	IsAdmin      bool                   `gorm:"not null;default:false" json:"is_admin"`
	Documents    []RegistrationDocument `json:"documents"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// RegistrationDocument is a compliance document attached to a registration.
// The binary lives in external document storage; only the URL is kept here.
type RegistrationDocument struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	URL         string    `gorm:"size:512;not null" json:"url"`
	ContentType string    `gorm:"size:64" json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
