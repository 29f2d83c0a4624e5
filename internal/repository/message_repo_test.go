package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/models"
)

func seedMessages(t *testing.T, repo MessageRepository, conversation string, texts ...string) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, text := range texts {
		message := models.Message{
			Sender:       "bob",
			Text:         text,
			Type:         models.MessageTypeUser,
			Conversation: conversation,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Save(context.Background(), &message))
	}
}

func TestMessageRepositoryListAscendingWithLimit(t *testing.T) {
	db := setupTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)
	ctx := context.Background()

	seedMessages(t, repo, "list-order", "one", "two", "three")

	all, err := repo.ListByConversation(ctx, "list-order", 50)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "one", all[0].Text)
	require.Equal(t, "three", all[2].Text)

	// The limit selects the most recent rows, still returned oldest first.
	limited, err := repo.ListByConversation(ctx, "list-order", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "two", limited[0].Text)
	require.Equal(t, "three", limited[1].Text)
}

func TestMessageRepositoryConversationIsolation(t *testing.T) {
	db := setupTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)
	ctx := context.Background()

	seedMessages(t, repo, "iso-a", "channel a")
	seedMessages(t, repo, "iso-b", "channel b")

	messages, err := repo.ListByConversation(ctx, "iso-a", 50)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "channel a", messages[0].Text)
}

func TestMessageRepositoryLatest(t *testing.T) {
	db := setupTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)
	ctx := context.Background()

	seedMessages(t, repo, "latest-conv", "old", "new")

	latest, err := repo.LatestByConversation(ctx, "latest-conv")
	require.NoError(t, err)
	require.Equal(t, "new", latest.Text)

	_, err = repo.LatestByConversation(ctx, "latest-empty")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
