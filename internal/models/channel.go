package models

import (
	"time"

	"gorm.io/datatypes"
)

// Channel is a named, shared multi-party conversation. Membership is implicit:
// any approved user may select any channel. Operators hold channel-scoped
// moderation rights, distinct from the global admin role.
type Channel struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description string                      `gorm:"size:255" json:"description"`
	Operators   datatypes.JSONSlice[string] `gorm:"type:json" json:"operators"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// HasOperator reports whether the nickname holds operator rights on the channel.
func (c Channel) HasOperator(nickname string) bool {
	for _, op := range c.Operators {
		if op == nickname {
			return true
		}
	}
	return false
}
