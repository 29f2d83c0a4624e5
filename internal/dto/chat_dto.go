package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// MessageContent is the single tagged content variant accepted at the
// boundary. Clients historically sent either a bare string or an object with
// varying shape; both are normalized here and never shape-sniffed deeper in
// the model.
type MessageContent struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// UnmarshalJSON accepts either a JSON string or a content object.
func (m *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		m.Text = text
		m.ImageURL = ""
		return nil
	}

	type alias MessageContent
	var object alias
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}
	*m = MessageContent(object)
	return nil
}

// ChatSendRequest represents a message submission from a connected client.
type ChatSendRequest struct {
	ClientID     string         `json:"client_id" validate:"omitempty,max=64"`
	Conversation string         `json:"conversation" validate:"required,min=1,max=128"`
	Content      MessageContent `json:"content"`
	Type         string         `json:"type" validate:"omitempty,oneof=SYSTEM USER AI ACTION IMAGE"`
}

// ChatHistoryQuery represents query filters for retrieving a conversation timeline.
type ChatHistoryQuery struct {
	Conversation string `query:"conversation" validate:"required,min=1,max=128"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a persisted message.
type MessageResponse struct {
	ID           uint      `json:"id"`
	ClientID     string    `json:"client_id,omitempty"`
	Sender       string    `json:"sender"`
	Text         string    `json:"text"`
	ImageURL     string    `json:"image_url,omitempty"`
	Type         string    `json:"type"`
	Conversation string    `json:"conversation"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:           message.ID,
		ClientID:     message.ClientID,
		Sender:       message.Sender,
		Text:         message.Text,
		ImageURL:     message.ImageURL,
		Type:         message.Type,
		Conversation: message.Conversation,
		CreatedAt:    message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// ChannelResponse describes a channel for the sidebar.
type ChannelResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Operators   []string `json:"operators"`
}

// NewChannelResponse converts a channel model into a DTO.
func NewChannelResponse(channel models.Channel) ChannelResponse {
	return ChannelResponse{
		Name:        channel.Name,
		Description: channel.Description,
		Operators:   channel.Operators,
	}
}

// NewChannelResponseSlice converts a slice of channel models into DTOs.
func NewChannelResponseSlice(channels []models.Channel) []ChannelResponse {
	out := make([]ChannelResponse, 0, len(channels))
	for _, channel := range channels {
		out = append(out, NewChannelResponse(channel))
	}
	return out
}
