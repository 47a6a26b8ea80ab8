package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"chattrain/internal/domain"
	"chattrain/internal/domain/ports/adapter"
	"chattrain/internal/infra/metrics"
)

var _ adapter.CompletionAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements the completion port using the official SDK.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Complete(ctx context.Context, req adapter.ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("gemini: no messages: %w", domain.ErrInvalidArgument)
	}
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	history := toGenAIHistory(req.Messages[:len(req.Messages)-1])
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	chat, err := g.client.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return "", fmt.Errorf("gemini: %v: %w", err, domain.ErrTransient)
	}

	last := req.Messages[len(req.Messages)-1]
	if strings.ToLower(last.Role) != "user" {
		return "", fmt.Errorf("gemini: last message must be from user: %w", domain.ErrInvalidArgument)
	}

	start := time.Now()
	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	metrics.ObserveAICall("gemini", time.Since(start), err == nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %v: %w", err, domain.ErrTransient)
	}

	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("gemini: empty completion: %w", domain.ErrTransient)
}

func toGenAIHistory(msgs []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if r := strings.ToLower(m.Role); r == "assistant" || r == "model" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}
