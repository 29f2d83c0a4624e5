package ai

import "context"

// CompletionInput carries the prompt and conversation context for a reply.
type CompletionInput struct {
	Prompt            string
	ConversationLabel string
	SystemInstruction string
	ImageURL          string
}

// Completer describes an AI model capable of generating a chat reply.
type Completer interface {
	Complete(ctx context.Context, input CompletionInput) (string, error)
}
