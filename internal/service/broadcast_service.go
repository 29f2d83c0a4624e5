package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/observability"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

// SystemSender is the authoring identity for broadcast system messages.
const SystemSender = "system"

// BroadcastService fans admin notifications out to channels and queues email
// notifications as audit log entries.
type BroadcastService interface {
	BroadcastChat(ctx context.Context, payload dto.BroadcastChatRequest) (dto.BroadcastChatResponse, error)
	QueueEmails(ctx context.Context, payload dto.BroadcastEmailRequest) ([]dto.NotificationLogResponse, error)
}

type broadcastService struct {
	channels      repository.ChannelRepository
	stream        StreamService
	notifications repository.NotificationRepository
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewBroadcastService constructs the broadcast service.
func NewBroadcastService(channels repository.ChannelRepository, stream StreamService, notifications repository.NotificationRepository, validate *validator.Validate, logger zerolog.Logger) BroadcastService {
	return &broadcastService{
		channels:      channels,
		stream:        stream,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "broadcast_service").Logger(),
	}
}

// BroadcastChat inserts one SYSTEM message per target channel. The all-channel
// case is N independent inserts, not an atomic multi-channel write; partial
// failure is reported per channel and also as a joined error.
func (s *broadcastService) BroadcastChat(ctx context.Context, payload dto.BroadcastChatRequest) (dto.BroadcastChatResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BroadcastChatResponse{}, err
	}

	var targets []string
	if name := strings.TrimSpace(payload.Channel); name != "" {
		channel, err := s.channels.GetByName(ctx, name)
		if err != nil {
			return dto.BroadcastChatResponse{}, err
		}
		targets = []string{channel.Name}
	} else {
		channels, err := s.channels.List(ctx)
		if err != nil {
			return dto.BroadcastChatResponse{}, err
		}
		for _, channel := range channels {
			targets = append(targets, channel.Name)
		}
	}

	result := dto.BroadcastChatResponse{}
	var failures []error
	for _, target := range targets {
		_, err := s.stream.Persist(ctx, models.Message{
			Sender:       SystemSender,
			Text:         payload.Body,
			Type:         models.MessageTypeSystem,
			Conversation: target,
		})
		if err != nil {
			result.Failed = append(result.Failed, target)
			failures = append(failures, fmt.Errorf("channel %s: %w", target, err))
			observability.BroadcastFanout().WithLabelValues("failed").Inc()
			continue
		}
		result.Delivered = append(result.Delivered, target)
		observability.BroadcastFanout().WithLabelValues("delivered").Inc()
	}

	audience := payload.Channel
	if audience == "" {
		audience = "all"
	}
	if err := s.notifications.Append(ctx, &models.NotificationLog{
		Type:   models.NotificationTypeChat,
		Target: audience,
		Body:   payload.Body,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to append broadcast audit entry")
	}

	return result, errors.Join(failures...)
}

// QueueEmails appends one email log entry per recipient. Delivery belongs to
// an external collaborator; the core only records the queue.
func (s *broadcastService) QueueEmails(ctx context.Context, payload dto.BroadcastEmailRequest) ([]dto.NotificationLogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	queued := make([]dto.NotificationLogResponse, 0, len(payload.Recipients))
	var failures []error
	for _, recipient := range payload.Recipients {
		entry := models.NotificationLog{
			Type:    models.NotificationTypeEmail,
			Target:  recipient,
			Subject: payload.Subject,
			Body:    payload.Body,
		}
		if err := s.notifications.Append(ctx, &entry); err != nil {
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient, err))
			continue
		}
		queued = append(queued, dto.NewNotificationLogResponse(entry))
	}

	return queued, errors.Join(failures...)
}
