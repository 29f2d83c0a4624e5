package dto

import (
	"time"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// RegistrationDecisionRequest moves a registration into a new status.
type RegistrationDecisionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// BroadcastChatRequest injects a system-authored message into one channel, or
// all channels when Channel is empty.
type BroadcastChatRequest struct {
	Channel string `json:"channel" validate:"omitempty,max=64"`
	Body    string `json:"body" validate:"required,min=1,max=2000"`
}

// BroadcastChatResponse reports the fan-out outcome per channel.
type BroadcastChatResponse struct {
	Delivered []string `json:"delivered"`
	Failed    []string `json:"failed,omitempty"`
}

// BroadcastEmailRequest queues an email notification per target recipient.
type BroadcastEmailRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required,max=255"`
	Body       string   `json:"body" validate:"required,min=1,max=4000"`
}

// NotificationLogResponse is an audit trail entry, admin-visible only.
type NotificationLogResponse struct {
	ID        uint      `json:"id"`
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationLogResponse converts a log model into a DTO.
func NewNotificationLogResponse(entry models.NotificationLog) NotificationLogResponse {
	return NotificationLogResponse{
		ID:        entry.ID,
		Type:      entry.Type,
		Target:    entry.Target,
		Subject:   entry.Subject,
		Body:      entry.Body,
		CreatedAt: entry.CreatedAt,
	}
}

// NewNotificationLogResponseSlice converts a slice of log models into DTOs.
func NewNotificationLogResponseSlice(entries []models.NotificationLog) []NotificationLogResponse {
	out := make([]NotificationLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewNotificationLogResponse(entry))
	}
	return out
}
