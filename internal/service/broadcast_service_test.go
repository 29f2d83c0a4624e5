package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
)

type channelRepoStub struct {
	channels []models.Channel
}

func (c *channelRepoStub) Create(_ context.Context, channel *models.Channel) error {
	channel.ID = uint(len(c.channels) + 1)
	c.channels = append(c.channels, *channel)
	return nil
}

func (c *channelRepoStub) GetByName(_ context.Context, name string) (models.Channel, error) {
	for _, channel := range c.channels {
		if channel.Name == name {
			return channel, nil
		}
	}
	return models.Channel{}, gorm.ErrRecordNotFound
}

func (c *channelRepoStub) List(_ context.Context) ([]models.Channel, error) {
	out := make([]models.Channel, len(c.channels))
	copy(out, c.channels)
	return out, nil
}

func (c *channelRepoStub) Count(_ context.Context) (int64, error) {
	return int64(len(c.channels)), nil
}

type streamServiceStub struct {
	persisted []models.Message
	failFor   map[string]error
}

func (s *streamServiceStub) Persist(_ context.Context, message models.Message) (dto.MessageResponse, error) {
	if err, ok := s.failFor[message.Conversation]; ok {
		return dto.MessageResponse{}, err
	}
	message.ID = uint(len(s.persisted) + 1)
	s.persisted = append(s.persisted, message)
	return dto.NewMessageResponse(message), nil
}

func (s *streamServiceStub) Fetch(_ context.Context, _ string, _ int) ([]dto.MessageResponse, error) {
	return nil, nil
}

func (s *streamServiceStub) LastMessage(_ context.Context, _ string) *dto.MessageResponse {
	return nil
}

func (s *streamServiceStub) Subscribe() (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse)
	return ch, func() { close(ch) }
}

func (s *streamServiceStub) Start(_ context.Context) {}

func broadcastFixture() (*channelRepoStub, *streamServiceStub, *notificationRepoStub) {
	channels := &channelRepoStub{channels: []models.Channel{
		{ID: 1, Name: "general"},
		{ID: 2, Name: "random"},
	}}
	return channels, &streamServiceStub{}, &notificationRepoStub{}
}

func TestBroadcastChatAllChannels(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	result, err := svc.BroadcastChat(context.Background(), dto.BroadcastChatRequest{Body: "maintenance at noon"})
	require.NoError(t, err)
	require.Equal(t, []string{"general", "random"}, result.Delivered)
	require.Empty(t, result.Failed)

	// One system message per channel, each an independent insert.
	require.Len(t, stream.persisted, 2)
	for _, message := range stream.persisted {
		require.Equal(t, SystemSender, message.Sender)
		require.Equal(t, models.MessageTypeSystem, message.Type)
		require.Equal(t, "maintenance at noon", message.Text)
	}

	// Exactly one audit entry for the whole fan-out.
	require.Len(t, notifications.entries, 1)
	require.Equal(t, "all", notifications.entries[0].Target)
	require.Equal(t, models.NotificationTypeChat, notifications.entries[0].Type)
}

func TestBroadcastChatPartialFailure(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	stream.failFor = map[string]error{"random": errors.New("insert failed")}
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	result, err := svc.BroadcastChat(context.Background(), dto.BroadcastChatRequest{Body: "heads up"})
	require.Error(t, err)
	require.Equal(t, []string{"general"}, result.Delivered)
	require.Equal(t, []string{"random"}, result.Failed)

	// The audit entry is written even when part of the fan-out failed.
	require.Len(t, notifications.entries, 1)
}

func TestBroadcastChatSingleChannel(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	result, err := svc.BroadcastChat(context.Background(), dto.BroadcastChatRequest{Channel: "general", Body: "hello general"})
	require.NoError(t, err)
	require.Equal(t, []string{"general"}, result.Delivered)
	require.Len(t, stream.persisted, 1)
	require.Equal(t, "general", notifications.entries[0].Target)
}

func TestBroadcastChatUnknownChannel(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	_, err := svc.BroadcastChat(context.Background(), dto.BroadcastChatRequest{Channel: "nowhere", Body: "lost"})
	require.Error(t, err)
	require.Empty(t, stream.persisted)
	require.Empty(t, notifications.entries)
}

func TestBroadcastChatValidation(t *testing.T) {
	channels, stream, _ := broadcastFixture()
	svc := NewBroadcastService(channels, stream, &notificationRepoStub{}, validator.New(), testLogger())

	_, err := svc.BroadcastChat(context.Background(), dto.BroadcastChatRequest{})
	require.Error(t, err)

	var validation validator.ValidationErrors
	require.ErrorAs(t, err, &validation)
}

func TestQueueEmailsPerRecipient(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	queued, err := svc.QueueEmails(context.Background(), dto.BroadcastEmailRequest{
		Recipients: []string{"a@example.com", "b@example.com"},
		Subject:    "Service notice",
		Body:       "We will be down briefly.",
	})
	require.NoError(t, err)
	require.Len(t, queued, 2)
	require.Equal(t, models.NotificationTypeEmail, notifications.entries[0].Type)
	require.Equal(t, "a@example.com", notifications.entries[0].Target)
	require.Equal(t, "Service notice", notifications.entries[0].Subject)
}

func TestQueueEmailsRejectsInvalidRecipient(t *testing.T) {
	channels, stream, notifications := broadcastFixture()
	svc := NewBroadcastService(channels, stream, notifications, validator.New(), testLogger())

	_, err := svc.QueueEmails(context.Background(), dto.BroadcastEmailRequest{
		Recipients: []string{"not-an-email"},
		Subject:    "x",
		Body:       "y",
	})
	require.Error(t, err)
	require.Empty(t, notifications.entries)
}
