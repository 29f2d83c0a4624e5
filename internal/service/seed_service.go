package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

// SeedService creates the default channel set on first boot.
type SeedService interface {
	EnsureChannels(ctx context.Context, names []string) error
}

type seedService struct {
	channels repository.ChannelRepository
	logger   zerolog.Logger
}

// NewSeedService constructs the seed service.
func NewSeedService(channels repository.ChannelRepository, logger zerolog.Logger) SeedService {
	return &seedService{
		channels: channels,
		logger:   logger.With().Str("component", "seed_service").Logger(),
	}
}

// EnsureChannels creates the named channels when the channel table is empty.
// An existing channel set is left untouched.
func (s *seedService) EnsureChannels(ctx context.Context, names []string) error {
	count, err := s.channels.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, name := range names {
		channel := models.Channel{Name: name, Description: "The " + name + " channel"}
		if err := s.channels.Create(ctx, &channel); err != nil {
			return err
		}
		s.logger.Info().Str("channel", name).Msg("default channel created")
	}

	return nil
}
