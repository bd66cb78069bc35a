package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gemini-2.5-flash"
	// DefaultEmbedModel is used when no embedding model is configured.
	DefaultEmbedModel = "text-embedding-004"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey     string
	UseVertex  bool
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
}

// Gemini implements Embedder and Generator on top of the genai SDK.
// Each call gets its own deadline of cfg.Timeout.
type Gemini struct {
	client     *genai.Client
	embedModel string
	chatModel  string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewGemini creates one shared genai client for the process.
func NewGemini(ctx context.Context, cfg GeminiConfig, log zerolog.Logger) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.UseVertex {
		cc.APIKey = ""
		cc.Backend = genai.BackendVertexAI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}

	g := &Gemini{
		client:     client,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		timeout:    cfg.Timeout,
		log:        log,
	}
	if g.embedModel == "" {
		g.embedModel = DefaultEmbedModel
	}
	if g.chatModel == "" {
		g.chatModel = DefaultChatModel
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	return g, nil
}

// Embed returns the embedding of text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "Gemini.Embed"

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, callError(op, "embedding service unavailable", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, apperr.E(apperr.KindGateway, op, "embedding service returned no vector", nil)
	}

	g.log.Debug().
		Str("model", g.embedModel).
		Int("dimension", len(resp.Embeddings[0].Values)).
		Dur("duration", time.Since(start)).
		Msg("Embedded text")

	return resp.Embeddings[0].Values, nil
}

// Generate sends p to the chat model and returns the trimmed reply.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	const op = "Gemini.Generate"

	if len(p.Messages) == 0 {
		return "", apperr.E(apperr.KindValidation, op, "prompt has no messages", nil)
	}

	contents := make([]*genai.Content, 0, len(p.Messages))
	for _, m := range p.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	var cfg *genai.GenerateContentConfig
	if p.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, cfg)
	if err != nil {
		return "", callError(op, "generation service unavailable", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apperr.E(apperr.KindGenerationEmpty, op, "No response from the model", nil)
	}

	g.log.Debug().
		Str("model", g.chatModel).
		Int("turns", len(contents)).
		Int("answer_len", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Generated answer")

	return text, nil
}

func callError(op, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		msg += " (timed out)"
	}
	return apperr.E(apperr.KindGateway, op, msg, err)
}

var (
	_ Embedder  = (*Gemini)(nil)
	_ Generator = (*Gemini)(nil)
)
