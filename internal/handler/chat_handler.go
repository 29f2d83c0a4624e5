package handler

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/observability"
	"github.com/velora-im/velora-chat-api/internal/prefs"
	"github.com/velora-im/velora-chat-api/internal/repository"
	"github.com/velora-im/velora-chat-api/internal/service"
	"github.com/velora-im/velora-chat-api/internal/session"
	"github.com/velora-im/velora-chat-api/internal/utils"
)

// ChatHandler wires the chat endpoints including the websocket upgrade. Each
// connection hosts one session state model fed by the global push stream.
type ChatHandler struct {
	stream       service.StreamService
	assistant    service.AssistantService
	channels     repository.ChannelRepository
	validator    *validator.Validate
	botNickname  string
	historyLimit int
	prefsDir     string
	logger       zerolog.Logger
}

// ChatHandlerConfig groups the chat handler dependencies.
type ChatHandlerConfig struct {
	Stream       service.StreamService
	Assistant    service.AssistantService
	Channels     repository.ChannelRepository
	Validator    *validator.Validate
	BotNickname  string
	HistoryLimit int
	PrefsDir     string
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(cfg ChatHandlerConfig, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		stream:       cfg.Stream,
		assistant:    cfg.Assistant,
		channels:     cfg.Channels,
		validator:    cfg.Validator,
		botNickname:  cfg.BotNickname,
		historyLimit: cfg.HistoryLimit,
		prefsDir:     cfg.PrefsDir,
		logger:       logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/history", h.history)
	router.Get("/channels", h.listChannels)
}

// wsCommand is the client -> server envelope.
type wsCommand struct {
	Action       string             `json:"action"`
	Conversation string             `json:"conversation,omitempty"`
	Peer         string             `json:"peer,omitempty"`
	Nickname     string             `json:"nickname,omitempty"`
	Muted        bool               `json:"muted,omitempty"`
	Content      dto.MessageContent `json:"content,omitempty"`
}

// wsEvent is the server -> client envelope.
type wsEvent struct {
	Event        string      `json:"event"`
	Conversation string      `json:"conversation,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Message      string      `json:"message,omitempty"`
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	nickname, _ := conn.Locals("nickname").(string)
	if strings.TrimSpace(nickname) == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "nickname missing"))
		_ = conn.Close()
		return
	}
	admin, _ := conn.Locals("is_admin").(bool)

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	channels, err := h.channels.List(baseCtx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load channels for session")
		_ = conn.Close()
		return
	}

	store := prefs.New(h.openPrefsStorage(nickname))

	sess := session.New(session.Options{
		Nickname:     nickname,
		Admin:        admin,
		BotNickname:  h.botNickname,
		Channels:     channels,
		Store:        h.stream,
		Assistant:    assistantAdapter{h.assistant},
		BlockList:    store,
		HistoryLimit: h.historyLimit,
		Logger:       h.logger,
	})

	observability.ChatConnectionsTotal().Inc()
	h.logger.Info().Str("nickname", nickname).Msg("chat websocket connected")

	events, cancel := h.stream.Subscribe()

	sender := newWSSender(32)
	forwarderDone := make(chan struct{})

	go func() {
		defer close(sender.writerDone)
		for event := range sender.outbound {
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		}
	}()

	go func() {
		defer close(forwarderDone)
		for message := range events {
			if !sess.ApplyEvent(message) {
				continue
			}
			if store.Blocked(message.Sender) && message.Sender != nickname {
				continue
			}
			if !sender.emit(wsEvent{Event: "message", Conversation: message.Conversation, Data: message}) {
				return
			}
		}
	}()

	h.readLoop(baseCtx, conn, sess, store, sender)

	// Teardown order matters: end the subscription so the forwarder stops
	// producing, wait for it, and only then close the channel the write loop
	// drains. Closing earlier races the forwarder's in-flight sends.
	cancel()
	<-forwarderDone
	close(sender.outbound)
	<-sender.writerDone
	_ = conn.Close()
	h.logger.Info().Str("nickname", nickname).Msg("chat websocket disconnected")
}

// wsSender funnels events toward the connection's write loop. emit stops
// blocking once the writer has exited, so a dead connection never wedges the
// read side or the push forwarder.
type wsSender struct {
	outbound   chan wsEvent
	writerDone chan struct{}
}

func newWSSender(buffer int) *wsSender {
	return &wsSender{
		outbound:   make(chan wsEvent, buffer),
		writerDone: make(chan struct{}),
	}
}

func (w *wsSender) emit(event wsEvent) bool {
	select {
	case w.outbound <- event:
		return true
	case <-w.writerDone:
		return false
	}
}

func (h *ChatHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, store *prefs.Store, sender *wsSender) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		var command wsCommand
		if err := json.Unmarshal(raw, &command); err != nil {
			if !sender.emit(wsEvent{Event: "error", Message: "invalid command payload"}) {
				return
			}
			continue
		}

		h.dispatch(ctx, command, sess, store, sender)
	}
}

func (h *ChatHandler) dispatch(ctx context.Context, command wsCommand, sess *session.Session, store *prefs.Store, sender *wsSender) {
	switch command.Action {
	case "switch":
		if err := sess.SwitchTo(ctx, command.Conversation); err != nil {
			sender.emit(wsEvent{Event: "error", Message: err.Error()})
			return
		}
		sender.emit(wsEvent{Event: "timeline", Conversation: command.Conversation, Data: sess.Timeline(command.Conversation)})

	case "open_private":
		if err := sess.OpenPrivateChat(ctx, command.Peer); err != nil {
			sender.emit(wsEvent{Event: "error", Message: err.Error()})
			return
		}
		sender.emit(wsEvent{Event: "timeline", Conversation: command.Peer, Data: sess.Timeline(command.Peer)})

	case "send":
		if sess.Active() == h.botNickname {
			sender.emit(wsEvent{Event: "generating", Data: true})
		}
		entry, err := sess.Send(ctx, command.Content)
		if err != nil {
			sender.emit(wsEvent{Event: "send_failed", Conversation: sess.Active(), Data: entry, Message: err.Error()})
		}
		if sess.Active() == h.botNickname {
			sender.emit(wsEvent{Event: "generating", Data: sess.IsGenerating()})
		}

	case "roster":
		conversation := command.Conversation
		if conversation == "" {
			conversation = sess.Active()
		}
		sender.emit(wsEvent{Event: "roster", Conversation: conversation, Data: sess.Roster(conversation)})

	case "block":
		if err := store.Block(command.Nickname); err != nil {
			sender.emit(wsEvent{Event: "error", Message: err.Error()})
			return
		}
		sender.emit(wsEvent{Event: "timeline", Conversation: sess.Active(), Data: sess.Timeline(sess.Active())})

	case "unblock":
		if err := store.Unblock(command.Nickname); err != nil {
			sender.emit(wsEvent{Event: "error", Message: err.Error()})
			return
		}
		sender.emit(wsEvent{Event: "timeline", Conversation: sess.Active(), Data: sess.Timeline(sess.Active())})

	case "mute":
		if err := store.SetMuted(command.Muted); err != nil {
			sender.emit(wsEvent{Event: "error", Message: err.Error()})
		}

	default:
		sender.emit(wsEvent{Event: "error", Message: "unknown action"})
	}
}

func (h *ChatHandler) openPrefsStorage(nickname string) prefs.Storage {
	if h.prefsDir == "" {
		return prefs.NewMemoryStorage()
	}

	storage, err := prefs.NewFileStorage(filepath.Join(h.prefsDir, nickname+".json"))
	if err != nil {
		h.logger.Warn().Err(err).Str("nickname", nickname).Msg("falling back to in-memory preferences")
		return prefs.NewMemoryStorage()
	}
	return storage
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	conversation := c.Query("conversation")
	if conversation == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation required")
	}

	limit := 0
	if limitRaw := c.Query("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	query := dto.ChatHistoryQuery{Conversation: conversation, Limit: limit}
	if err := h.validator.Struct(query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	messages, err := h.stream.Fetch(ctx, query.Conversation, query.Limit)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "conversation history", messages)
}

func (h *ChatHandler) listChannels(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	channels, err := h.channels.List(ctx)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "channel list", dto.NewChannelResponseSlice(channels))
}

// assistantAdapter bridges the assistant service onto the session interface.
type assistantAdapter struct {
	service service.AssistantService
}

func (a assistantAdapter) Reply(ctx context.Context, prompt, conversationLabel, imageURL string) string {
	return a.service.Reply(ctx, prompt, conversationLabel, imageURL)
}
