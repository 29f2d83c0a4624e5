package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// ChannelRepository persists channel definitions.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByName(ctx context.Context, name string) (models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Count(ctx context.Context) (int64, error)
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a channel repository backed by GORM.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) GetByName(ctx context.Context, name string) (models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&channel).Error
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Channel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
