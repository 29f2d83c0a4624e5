package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/observability"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

const (
	streamRedisTTL       = 30 * time.Minute
	streamSubscribeQueue = 32
)

// StreamService persists chat messages and pushes every insert to all
// subscribers over a single global stream. Subscribers filter by the
// conversation tags they follow; the stream itself carries everything.
type StreamService interface {
	Persist(ctx context.Context, message models.Message) (dto.MessageResponse, error)
	Fetch(ctx context.Context, conversation string, limit int) ([]dto.MessageResponse, error)
	LastMessage(ctx context.Context, conversation string) *dto.MessageResponse
	Subscribe() (<-chan dto.MessageResponse, func())
	Start(ctx context.Context)
}

type streamService struct {
	repo        repository.MessageRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *streamBroker
	nodeID      string
}

// streamBroker fans pushed messages out to in-process subscribers.
type streamBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.MessageResponse]struct{}
	log         zerolog.Logger
}

type streamEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewStreamService creates the message stream service.
func NewStreamService(repo repository.MessageRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) StreamService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	stream := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		stream = channelBase + ":messages"
		cachePrefix = channelBase + ":messages:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	return &streamService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "stream_service").Logger(),
		tracer:      otel.Tracer("github.com/velora-im/velora-chat-api/internal/service/stream"),
		sanitizer:   sanitizer,
		broker: &streamBroker{
			subscribers: make(map[chan dto.MessageResponse]struct{}),
			log:         logger.With().Str("component", "stream_broker").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *streamService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Persist sanitizes, saves, and pushes a message. The canonical record is
// returned and also delivered over the push stream for reconciliation.
func (s *streamService) Persist(ctx context.Context, message models.Message) (dto.MessageResponse, error) {
	message.Text = strings.TrimSpace(s.sanitizer.Sanitize(message.Text))
	if message.Text == "" && message.ImageURL == "" {
		return dto.MessageResponse{}, errors.New("message content empty after sanitization")
	}

	if message.Type == "" {
		message.Type = models.MessageTypeUser
	}

	spanCtx, span := s.tracer.Start(ctx, "stream.persist", trace.WithAttributes(
		attribute.String("chat.conversation", message.Conversation),
		attribute.String("chat.sender", message.Sender),
		attribute.String("chat.type", message.Type),
	))
	defer span.End()

	if err := s.repo.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	s.cacheLastMessage(spanCtx, response)
	s.broker.broadcast(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish message event")
	}

	observability.ChatMessagesSent().WithLabelValues(message.Type).Inc()

	return response, nil
}

func (s *streamService) Fetch(ctx context.Context, conversation string, limit int) ([]dto.MessageResponse, error) {
	messages, err := s.repo.ListByConversation(ctx, conversation, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

// LastMessage returns the cached most recent message for a conversation, or
// nil when nothing is cached.
func (s *streamService) LastMessage(ctx context.Context, conversation string) *dto.MessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	result, err := s.redis.Get(ctx, s.redisCache+":"+conversation).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached message")
		return nil
	}

	return &message
}

// Subscribe registers a push stream consumer. The returned cancel function
// must be called when the session ends to avoid leaked listeners.
func (s *streamService) Subscribe() (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse, streamSubscribeQueue)

	s.broker.mu.Lock()
	s.broker.subscribers[ch] = struct{}{}
	s.broker.mu.Unlock()

	cancel := func() {
		s.broker.mu.Lock()
		if _, ok := s.broker.subscribers[ch]; ok {
			delete(s.broker.subscribers, ch)
			close(ch)
		}
		s.broker.mu.Unlock()
	}

	return ch, cancel
}

func (s *streamService) cacheLastMessage(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal message for cache")
		return
	}

	key := s.redisCache + ":" + message.Conversation
	if err := s.redis.Set(ctx, key, payload, streamRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache message")
	}
}

func (s *streamService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := streamEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *streamService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("message redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *streamService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "velora-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats message subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain nats subscription")
		}
	}()
}

func (s *streamService) handleEvent(data []byte) {
	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid message event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Message)
}

func (b *streamBroker) broadcast(message dto.MessageResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriber := range b.subscribers {
		select {
		case subscriber <- message:
		default:
			b.log.Warn().Str("conversation", message.Conversation).Msg("dropping message for slow subscriber")
		}
	}
}
