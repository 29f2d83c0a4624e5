package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/pkg/ai"
)

// PlaceholderReply is returned whenever the completion backend is not
// configured or fails. The assistant degrades; it never surfaces an error to
// the user.
const PlaceholderReply = "I'm having trouble thinking right now. Please try again in a moment."

// AssistantService produces replies for the AI assistant peer.
type AssistantService interface {
	Reply(ctx context.Context, prompt, conversationLabel, imageURL string) string
}

type assistantService struct {
	completer ai.Completer
	persona   string
	logger    zerolog.Logger
}

// NewAssistantService constructs the assistant. A nil completer means no
// credential is configured; every reply is then the placeholder.
func NewAssistantService(completer ai.Completer, persona string, logger zerolog.Logger) AssistantService {
	return &assistantService{
		completer: completer,
		persona:   persona,
		logger:    logger.With().Str("component", "assistant_service").Logger(),
	}
}

func (s *assistantService) Reply(ctx context.Context, prompt, conversationLabel, imageURL string) string {
	if s.completer == nil {
		return PlaceholderReply
	}

	reply, err := s.completer.Complete(ctx, ai.CompletionInput{
		Prompt:            prompt,
		ConversationLabel: conversationLabel,
		SystemInstruction: s.persona,
		ImageURL:          imageURL,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("completion failed, degrading to placeholder")
		return PlaceholderReply
	}

	if strings.TrimSpace(reply) == "" {
		return PlaceholderReply
	}

	return reply
}
