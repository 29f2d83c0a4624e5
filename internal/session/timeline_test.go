package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
)

func TestTimelineMergeKeepsOptimisticEntriesAtTail(t *testing.T) {
	tl := newTimeline()
	tl.entries = append(tl.entries,
		Entry{LocalID: "local-1", Sender: "alice", Text: "still pending", State: StatePending},
		Entry{LocalID: "local-2", Sender: "alice", Text: "failed earlier", State: StateFailed},
	)

	now := time.Now()
	tl.merge([]dto.MessageResponse{
		{ID: 2, Sender: "bob", Text: "second", Type: models.MessageTypeUser, CreatedAt: now},
		{ID: 1, Sender: "bob", Text: "first", Type: models.MessageTypeUser, CreatedAt: now.Add(-time.Minute)},
	})

	require.True(t, tl.loaded)
	require.Len(t, tl.entries, 4)
	require.Equal(t, "first", tl.entries[0].Text)
	require.Equal(t, "second", tl.entries[1].Text)
	require.Equal(t, StatePending, tl.entries[2].State)
	require.Equal(t, StateFailed, tl.entries[3].State)
}

func TestTimelineMergeReconcilesInFlightConfirmation(t *testing.T) {
	tl := newTimeline()
	tl.entries = append(tl.entries, Entry{LocalID: "local-1", Sender: "alice", Text: "hello", State: StatePending})

	// The push event for our own send can arrive inside the history fetch.
	tl.merge([]dto.MessageResponse{
		{ID: 9, ClientID: "local-1", Sender: "alice", Text: "hello", CreatedAt: time.Now()},
	})

	require.Len(t, tl.entries, 1)
	require.Equal(t, StateConfirmed, tl.entries[0].State)
	require.Equal(t, uint(9), tl.entries[0].ServerID)
}

func TestEntryStateString(t *testing.T) {
	require.Equal(t, "pending", StatePending.String())
	require.Equal(t, "confirmed", StateConfirmed.String())
	require.Equal(t, "failed", StateFailed.String())
}
