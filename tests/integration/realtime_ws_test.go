package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/handler"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
	"github.com/velora-im/velora-chat-api/internal/service"
)

const testSecret = "integration-secret"

type wsEvent struct {
	Event        string          `json:"event"`
	Conversation string          `json:"conversation"`
	Data         json.RawMessage `json:"data"`
	Message      string          `json:"message"`
}

func buildChatApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Channel{}, &models.Message{}))

	logger := zerolog.New(io.Discard)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	seed := service.NewSeedService(channelRepo, logger)
	require.NoError(t, seed.EnsureChannels(context.Background(), []string{"general", "random"}))

	stream := service.NewStreamService(messageRepo, nil, "", nil, logger)
	assistant := service.NewAssistantService(nil, "You are Vela.", logger)

	chatHandler := handler.NewChatHandler(handler.ChatHandlerConfig{
		Stream:       stream,
		Assistant:    assistant,
		Channels:     channelRepo,
		Validator:    validator.New(),
		BotNickname:  "Vela",
		HistoryLimit: 50,
	}, logger)

	app := fiber.New()
	chat := app.Group("/api/v1/chat", middleware.JWTProtected(testSecret), middleware.RequireApproved())
	chatHandler.Register(chat)
	return app
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func dialChat(t *testing.T, baseURL, nickname string) *websocket.Conn {
	t.Helper()

	token, err := middleware.IssueToken(testSecret, nickname, models.UserStatusApproved, false, time.Hour)
	require.NoError(t, err)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := dialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, command map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(command))
}

// waitForEvent reads events until the predicate matches or the deadline hits.
func waitForEvent(t *testing.T, conn *websocket.Conn, describe string, match func(wsEvent) bool) wsEvent {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var event wsEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %s: %v", describe, err)
		}
		if match(event) {
			return event
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", describe)
		}
	}
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws"

	_, resp, err := dialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestWebsocketChannelRoundTrip(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	alice := dialChat(t, baseURL, "alice")
	bob := dialChat(t, baseURL, "bob")

	sendCommand(t, alice, map[string]interface{}{"action": "switch", "conversation": "general"})
	waitForEvent(t, alice, "alice timeline", func(e wsEvent) bool { return e.Event == "timeline" && e.Conversation == "general" })

	sendCommand(t, bob, map[string]interface{}{"action": "switch", "conversation": "general"})
	waitForEvent(t, bob, "bob timeline", func(e wsEvent) bool { return e.Event == "timeline" && e.Conversation == "general" })

	sendCommand(t, alice, map[string]interface{}{"action": "send", "content": "hello everyone"})

	event := waitForEvent(t, bob, "broadcasted message", func(e wsEvent) bool { return e.Event == "message" })
	require.Equal(t, "general", event.Conversation)

	var message dto.MessageResponse
	require.NoError(t, json.Unmarshal(event.Data, &message))
	require.Equal(t, "alice", message.Sender)
	require.Equal(t, "hello everyone", message.Text)
	require.NotZero(t, message.ID)

	// The sender receives the same confirmation over the push stream.
	own := waitForEvent(t, alice, "own confirmation", func(e wsEvent) bool { return e.Event == "message" })
	var ownMessage dto.MessageResponse
	require.NoError(t, json.Unmarshal(own.Data, &ownMessage))
	require.Equal(t, message.ID, ownMessage.ID)
	require.NotEmpty(t, ownMessage.ClientID)
}

func TestWebsocketAssistantConversation(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	alice := dialChat(t, baseURL, "alice")

	sendCommand(t, alice, map[string]interface{}{"action": "open_private", "peer": "Vela"})
	waitForEvent(t, alice, "assistant timeline", func(e wsEvent) bool { return e.Event == "timeline" && e.Conversation == "Vela" })

	sendCommand(t, alice, map[string]interface{}{"action": "send", "content": "what is go"})

	waitForEvent(t, alice, "generating indicator", func(e wsEvent) bool { return e.Event == "generating" })

	// Without a configured completion backend the assistant degrades to its
	// placeholder reply, delivered as an ordinary AI message.
	reply := waitForEvent(t, alice, "assistant reply", func(e wsEvent) bool {
		if e.Event != "message" {
			return false
		}
		var message dto.MessageResponse
		if err := json.Unmarshal(e.Data, &message); err != nil {
			return false
		}
		return message.Sender == "Vela" && message.Type == models.MessageTypeAI
	})

	var message dto.MessageResponse
	require.NoError(t, json.Unmarshal(reply.Data, &message))
	require.Equal(t, service.PlaceholderReply, message.Text)
}

func TestWebsocketRosterAndBlock(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	alice := dialChat(t, baseURL, "alice")

	sendCommand(t, alice, map[string]interface{}{"action": "switch", "conversation": "general"})
	waitForEvent(t, alice, "timeline", func(e wsEvent) bool { return e.Event == "timeline" })

	sendCommand(t, alice, map[string]interface{}{"action": "roster"})
	roster := waitForEvent(t, alice, "roster", func(e wsEvent) bool { return e.Event == "roster" })
	require.Equal(t, "general", roster.Conversation)

	sendCommand(t, alice, map[string]interface{}{"action": "block", "nickname": "bob"})
	waitForEvent(t, alice, "timeline after block", func(e wsEvent) bool { return e.Event == "timeline" })

	sendCommand(t, alice, map[string]interface{}{"action": "unblock", "nickname": "bob"})
	waitForEvent(t, alice, "timeline after unblock", func(e wsEvent) bool { return e.Event == "timeline" })
}

// Abrupt disconnects while broadcast traffic is flowing must never take the
// server down: the connection teardown races the push forwarder, and a lost
// race used to panic the whole process on a closed outbound channel.
func TestWebsocketSurvivesDisconnectDuringBroadcast(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	publisher := dialChat(t, baseURL, "alice")
	sendCommand(t, publisher, map[string]interface{}{"action": "switch", "conversation": "general"})
	waitForEvent(t, publisher, "publisher timeline", func(e wsEvent) bool { return e.Event == "timeline" })

	stop := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := publisher.WriteJSON(map[string]interface{}{"action": "send", "content": fmt.Sprintf("burst %d", i)}); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	for i := 0; i < 40; i++ {
		conn := dialChat(t, baseURL, fmt.Sprintf("guest%d", i))
		sendCommand(t, conn, map[string]interface{}{"action": "switch", "conversation": "general"})
		_ = conn.Close()
	}

	close(stop)
	<-pumpDone

	// The server must still accept connections and serve traffic.
	survivor := dialChat(t, baseURL, "carol")
	sendCommand(t, survivor, map[string]interface{}{"action": "switch", "conversation": "general"})
	waitForEvent(t, survivor, "timeline after churn", func(e wsEvent) bool { return e.Event == "timeline" && e.Conversation == "general" })
}

func TestWebsocketUnknownActionReportsError(t *testing.T) {
	app := buildChatApp(t)
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	alice := dialChat(t, baseURL, "alice")

	sendCommand(t, alice, map[string]interface{}{"action": "teleport"})
	event := waitForEvent(t, alice, "error event", func(e wsEvent) bool { return e.Event == "error" })
	require.Equal(t, "unknown action", event.Message)
}
