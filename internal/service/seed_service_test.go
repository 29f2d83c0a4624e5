package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velora-im/velora-chat-api/internal/models"
)

func TestSeedCreatesDefaultChannelsOnEmptyStore(t *testing.T) {
	channels := &channelRepoStub{}
	svc := NewSeedService(channels, testLogger())

	require.NoError(t, svc.EnsureChannels(context.Background(), []string{"general", "random"}))
	require.Len(t, channels.channels, 2)
	require.Equal(t, "general", channels.channels[0].Name)
	require.NotEmpty(t, channels.channels[0].Description)
}

func TestSeedLeavesExistingChannelsUntouched(t *testing.T) {
	channels := &channelRepoStub{channels: []models.Channel{{ID: 1, Name: "custom"}}}
	svc := NewSeedService(channels, testLogger())

	require.NoError(t, svc.EnsureChannels(context.Background(), []string{"general", "random"}))
	require.Len(t, channels.channels, 1)
	require.Equal(t, "custom", channels.channels[0].Name)
}
