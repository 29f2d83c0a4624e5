package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
)

// ErrNoActiveConversation is returned when a send arrives before any
// conversation has been selected.
var ErrNoActiveConversation = errors.New("no active conversation")

// MessageStore is the session's view of the message store collaborator.
// Persist saves a message and returns the canonical record; the store also
// delivers every insert over a global push stream fed into ApplyEvent.
type MessageStore interface {
	Persist(ctx context.Context, message models.Message) (dto.MessageResponse, error)
	Fetch(ctx context.Context, conversation string, limit int) ([]dto.MessageResponse, error)
}

// Assistant produces a reply for the AI peer. Implementations must degrade to
// a placeholder string instead of failing.
type Assistant interface {
	Reply(ctx context.Context, prompt, conversationLabel, imageURL string) string
}

// BlockList answers render-time blocking questions. Blocking is a per-device
// view concern; blocked senders' messages stay in the store.
type BlockList interface {
	Blocked(nickname string) bool
}

// Options configures a Session.
type Options struct {
	Nickname     string
	Admin        bool
	BotNickname  string
	Channels     []models.Channel
	Store        MessageStore
	Assistant    Assistant
	BlockList    BlockList
	HistoryLimit int
	Logger       zerolog.Logger
}

// Session owns one user's channel/tab state: the joined channels, private
// conversations (always including the AI assistant peer), the active
// conversation pointer, and the per-conversation timelines with the
// optimistic-send state machine.
type Session struct {
	mu sync.Mutex

	nickname    string
	admin       bool
	botNickname string

	store        MessageStore
	assistant    Assistant
	blockList    BlockList
	historyLimit int
	logger       zerolog.Logger

	active     string
	channels   []models.Channel
	privates   []string
	timelines  map[string]*timeline
	fetchSeq   uint64
	generating bool
}

// New constructs a session. The assistant peer is always present in the
// private conversation list.
func New(opts Options) *Session {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 50
	}

	s := &Session{
		nickname:     opts.Nickname,
		admin:        opts.Admin,
		botNickname:  opts.BotNickname,
		store:        opts.Store,
		assistant:    opts.Assistant,
		blockList:    opts.BlockList,
		historyLimit: limit,
		logger:       opts.Logger.With().Str("component", "session").Str("nickname", opts.Nickname).Logger(),
		channels:     opts.Channels,
		timelines:    make(map[string]*timeline),
	}

	if s.botNickname != "" {
		s.privates = []string{s.botNickname}
	}

	return s
}

// Nickname returns the session owner's handle.
func (s *Session) Nickname() string {
	return s.nickname
}

// Active returns the active conversation identifier.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsGenerating reports whether an AI completion is in flight for this session.
func (s *Session) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// PrivateConversations returns the ordered private peer list.
func (s *Session) PrivateConversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.privates))
	copy(out, s.privates)
	return out
}

// SwitchTo activates a conversation, fetching its timeline lazily. Switching
// to the already-active conversation is a no-op unless its history never
// loaded, in which case the fetch is retried. A fetch completing after a
// further switch never overwrites the newer conversation's timeline.
func (s *Session) SwitchTo(ctx context.Context, conversation string) error {
	s.mu.Lock()
	if conversation != s.active {
		if !s.knownLocked(conversation) {
			s.mu.Unlock()
			return errors.New("unknown conversation")
		}
		s.active = conversation
	}

	tl := s.timelineLocked(conversation)
	if tl.loaded {
		s.mu.Unlock()
		return nil
	}

	s.fetchSeq++
	seq := s.fetchSeq
	tag := s.storeTagLocked(conversation)
	s.mu.Unlock()

	messages, err := s.store.Fetch(ctx, tag, s.historyLimit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stale-fetch guard: a switch that happened while the fetch was in
	// flight wins; the stale result is dropped.
	if seq != s.fetchSeq || s.active != conversation {
		s.logger.Debug().Str("conversation", conversation).Msg("dropping stale timeline fetch")
		return nil
	}

	tl.merge(messages)
	return nil
}

// OpenPrivateChat adds the peer to the private conversation list if absent
// (set semantics keyed by nickname) and switches to it.
func (s *Session) OpenPrivateChat(ctx context.Context, peer string) error {
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == s.nickname {
		return errors.New("invalid private chat peer")
	}

	s.mu.Lock()
	found := false
	for _, existing := range s.privates {
		if existing == peer {
			found = true
			break
		}
	}
	if !found {
		s.privates = append(s.privates, peer)
	}
	s.mu.Unlock()

	return s.SwitchTo(ctx, peer)
}

// Send optimistically appends a pending entry to the active conversation and
// persists it. On persist failure the entry is marked failed and kept visible
// for retry; it is never silently rolled back. Confirmation arrives through
// the push stream and is reconciled by client id in ApplyEvent.
func (s *Session) Send(ctx context.Context, content dto.MessageContent) (Entry, error) {
	s.mu.Lock()
	conversation := s.active
	if conversation == "" {
		s.mu.Unlock()
		return Entry{}, ErrNoActiveConversation
	}

	messageType := models.MessageTypeUser
	if content.ImageURL != "" {
		messageType = models.MessageTypeImage
	}

	entry := Entry{
		LocalID:  uuid.NewString(),
		Sender:   s.nickname,
		Text:     content.Text,
		ImageURL: content.ImageURL,
		Type:     messageType,
		State:    StatePending,
	}

	tl := s.timelineLocked(conversation)
	tl.entries = append(tl.entries, entry)
	tag := s.storeTagLocked(conversation)
	isAssistantPeer := conversation == s.botNickname && s.assistant != nil
	if isAssistantPeer {
		s.generating = true
	}
	s.mu.Unlock()

	_, err := s.store.Persist(ctx, models.Message{
		ClientID:     entry.LocalID,
		Sender:       s.nickname,
		Text:         content.Text,
		ImageURL:     content.ImageURL,
		Type:         messageType,
		Conversation: tag,
	})
	if err != nil {
		s.mu.Lock()
		for i := range tl.entries {
			if tl.entries[i].LocalID == entry.LocalID {
				tl.entries[i].State = StateFailed
				break
			}
		}
		if isAssistantPeer {
			s.generating = false
		}
		s.mu.Unlock()
		entry.State = StateFailed
		return entry, err
	}

	if isAssistantPeer {
		s.completeAssistant(ctx, conversation, tag, content)
	}

	return entry, nil
}

// completeAssistant requests an AI reply and persists it as an AI message.
// The reply flows back through the same push/dedup path as any other insert.
func (s *Session) completeAssistant(ctx context.Context, conversation, tag string, content dto.MessageContent) {
	reply := s.assistant.Reply(ctx, content.Text, conversation, content.ImageURL)

	_, err := s.store.Persist(ctx, models.Message{
		ClientID:     uuid.NewString(),
		Sender:       s.botNickname,
		Text:         reply,
		Type:         models.MessageTypeAI,
		Conversation: tag,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist assistant reply")
	}

	s.mu.Lock()
	s.generating = false
	s.mu.Unlock()
}

// ApplyEvent reconciles one message from the global push stream. Events for
// conversations this session does not follow are ignored without error.
// Reconciliation deduplicates by server id, so duplicate or out-of-order
// delivery is harmless.
func (s *Session) ApplyEvent(message dto.MessageResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.localConversationLocked(message.Conversation)
	if !ok {
		return false
	}

	tl := s.timelineLocked(conversation)
	return tl.appendConfirmed(message)
}

// Timeline returns the rendered entries for a conversation with blocked
// senders filtered out. Unblocking restores visibility without a refetch
// because filtering happens only here, at render time.
func (s *Session) Timeline(conversation string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.timelines[conversation]
	if !ok {
		return nil
	}

	out := make([]Entry, 0, len(tl.entries))
	for _, entry := range tl.entries {
		if s.blockList != nil && entry.Sender != s.nickname && s.blockList.Blocked(entry.Sender) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// knownLocked reports whether the conversation is a joined channel or a
// private peer. The active conversation is always drawn from this set.
func (s *Session) knownLocked(conversation string) bool {
	for _, channel := range s.channels {
		if channel.Name == conversation {
			return true
		}
	}
	for _, peer := range s.privates {
		if peer == conversation {
			return true
		}
	}
	return false
}

func (s *Session) timelineLocked(conversation string) *timeline {
	tl, ok := s.timelines[conversation]
	if !ok {
		tl = newTimeline()
		s.timelines[conversation] = tl
	}
	return tl
}

// storeTagLocked maps a local conversation id onto the store's conversation
// tag. Channels map to their own name; private chats use a canonical pair key
// so both participants read the same rows.
func (s *Session) storeTagLocked(conversation string) string {
	for _, channel := range s.channels {
		if channel.Name == conversation {
			return conversation
		}
	}
	return PrivateTag(s.nickname, conversation)
}

// localConversationLocked resolves a store tag back to the session's local
// conversation id, reporting false for tags this session does not follow.
// A private message addressed to this session opens the peer conversation
// implicitly so the first message from a new contact is never dropped.
func (s *Session) localConversationLocked(tag string) (string, bool) {
	if peer, isPrivate := privatePeer(tag, s.nickname); isPrivate {
		for _, existing := range s.privates {
			if existing == peer {
				return peer, true
			}
		}
		s.privates = append(s.privates, peer)
		return peer, true
	}

	for _, channel := range s.channels {
		if channel.Name == tag {
			return tag, true
		}
	}
	return "", false
}

// PrivateTag builds the canonical store tag for a two-party conversation.
func PrivateTag(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return "dm:" + pair[0] + ":" + pair[1]
}

// privatePeer extracts the other participant from a private tag, reporting
// false when the tag is not private or does not involve the given nickname.
func privatePeer(tag, self string) (string, bool) {
	if !strings.HasPrefix(tag, "dm:") {
		return "", false
	}

	parts := strings.SplitN(strings.TrimPrefix(tag, "dm:"), ":", 2)
	if len(parts) != 2 {
		return "", false
	}

	switch self {
	case parts[0]:
		return parts[1], true
	case parts[1]:
		return parts[0], true
	default:
		return "", false
	}
}
