package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// MessageRepository persists chat messages per conversation.
type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversation string, limit int) ([]models.Message, error)
	LatestByConversation(ctx context.Context, conversation string) (models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByConversation returns the most recent N messages in chronological
// ascending order.
func (r *messageRepository) ListByConversation(ctx context.Context, conversation string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation = ?", conversation).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) LatestByConversation(ctx context.Context, conversation string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("conversation = ?", conversation).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}
