package models

import "time"

// Notification log entry types.
const (
	NotificationTypeChat  = "chat"
	NotificationTypeEmail = "email"
)

// NotificationLog is an append-only audit trail of admin broadcast actions.
// Email entries are queued records only; delivery belongs to an external
// collaborator.
type NotificationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Target    string    `gorm:"size:255;not null" json:"target"`
	Subject   string    `gorm:"size:255" json:"subject,omitempty"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
