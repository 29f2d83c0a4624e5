package models

import "time"

// Message type values.
const (
	MessageTypeSystem = "SYSTEM"
	MessageTypeUser   = "USER"
	MessageTypeAI     = "AI"
	MessageTypeAction = "ACTION"
	MessageTypeImage  = "IMAGE"
)

// Message is a single chat payload. A message belongs to exactly one
// conversation at creation time and never migrates; rows are immutable once
// persisted. Conversation is either a channel name or a private-chat key.
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ClientID     string    `gorm:"size:64;index" json:"client_id"`
	Sender       string    `gorm:"size:64;index;not null" json:"sender"`
	Text         string    `gorm:"type:text" json:"text"`
	ImageURL     string    `gorm:"size:512" json:"image_url,omitempty"`
	Type         string    `gorm:"size:16;not null;default:USER" json:"type"`
	Conversation string    `gorm:"size:128;index;not null" json:"conversation"`
	CreatedAt    time.Time `json:"created_at"`
}
