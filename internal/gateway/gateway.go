// Package gateway holds the narrow contracts the assistant uses to reach
// the embedding and generation models.
package gateway

import (
	"context"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text for a prompt. An empty response must be
// reported as an apperr.KindGenerationEmpty error, never as "".
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Prompt is what gets sent to a Generator: an optional system instruction
// and the ordered conversation turns.
type Prompt struct {
	System   string
	Messages []domain.Message
}

// TextPrompt wraps flat text as a single user turn.
func TextPrompt(text string) Prompt {
	return Prompt{Messages: []domain.Message{{Role: domain.RoleUser, Content: text}}}
}
