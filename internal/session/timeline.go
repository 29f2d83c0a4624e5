package session

import (
	"sort"
	"time"

	"github.com/velora-im/velora-chat-api/internal/dto"
)

// EntryState tracks the lifecycle of a sent message. The only transitions are
// pending -> confirmed (push match) and pending -> failed (persist error).
type EntryState int

const (
	StatePending EntryState = iota
	StateConfirmed
	StateFailed
)

// String returns a readable form for logging.
func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is a single timeline item. Optimistic entries carry a locally
// generated LocalID until the store's push confirms them with a server id.
type Entry struct {
	LocalID   string
	ServerID  uint
	Sender    string
	Text      string
	ImageURL  string
	Type      string
	CreatedAt time.Time
	State     EntryState
}

// timeline holds the ordered message sequence for one conversation.
type timeline struct {
	entries []Entry
	loaded  bool
	seen    map[uint]struct{}
}

func newTimeline() *timeline {
	return &timeline{seen: make(map[uint]struct{})}
}

// appendConfirmed adds a server-confirmed message, first trying to reconcile
// it with a pending optimistic entry by client id, then deduplicating by
// server id. Reconciliation is idempotent regardless of arrival order.
func (t *timeline) appendConfirmed(message dto.MessageResponse) bool {
	if _, dup := t.seen[message.ID]; dup {
		return false
	}

	t.seen[message.ID] = struct{}{}

	if message.ClientID != "" {
		for i := range t.entries {
			if t.entries[i].State == StatePending && t.entries[i].LocalID == message.ClientID {
				t.entries[i].ServerID = message.ID
				t.entries[i].CreatedAt = message.CreatedAt
				t.entries[i].State = StateConfirmed
				return true
			}
		}
	}

	t.entries = append(t.entries, Entry{
		ServerID:  message.ID,
		Sender:    message.Sender,
		Text:      message.Text,
		ImageURL:  message.ImageURL,
		Type:      message.Type,
		CreatedAt: message.CreatedAt,
		State:     StateConfirmed,
	})
	return true
}

// merge installs fetched history without dropping optimistic entries and
// without duplicating already-seen messages. Confirmed entries are kept in
// creation-time order; pending and failed entries stay at the tail.
func (t *timeline) merge(messages []dto.MessageResponse) {
	for _, message := range messages {
		t.appendConfirmed(message)
	}

	confirmed := make([]Entry, 0, len(t.entries))
	unconfirmed := make([]Entry, 0)
	for _, entry := range t.entries {
		if entry.State == StateConfirmed {
			confirmed = append(confirmed, entry)
		} else {
			unconfirmed = append(unconfirmed, entry)
		}
	}

	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].CreatedAt.Before(confirmed[j].CreatedAt)
	})

	t.entries = append(confirmed, unconfirmed...)
	t.loaded = true
}
