package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// NotificationRepository appends to and reads the admin audit trail.
type NotificationRepository interface {
	Append(ctx context.Context, entry *models.NotificationLog) error
	List(ctx context.Context, limit int) ([]models.NotificationLog, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a notification log repository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Append(ctx context.Context, entry *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *notificationRepository) List(ctx context.Context, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var entries []models.NotificationLog
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
