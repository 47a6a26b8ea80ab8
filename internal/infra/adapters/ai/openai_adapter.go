package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"chattrain/internal/domain"
	"chattrain/internal/domain/ports/adapter"
	"chattrain/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CompletionAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the completion port via the Chat Completions API.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIAdapter(apiKey, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(option.WithAPIKey(apiKey), option.WithRequestTimeout(30*time.Second)),
		defaultModel: defaultModel,
	}, nil
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if strings.ToLower(m.Role) == "assistant" {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	})
	metrics.ObserveAICall("openai", time.Since(start), err == nil)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", fmt.Errorf("openai: empty completion: %w", domain.ErrTransient)
}

func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		// 408/429/5xx are worth retrying; the rest are caller bugs.
		if apierr.StatusCode == 408 || apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return fmt.Errorf("openai http %d: %w", apierr.StatusCode, domain.ErrTransient)
		}
		return fmt.Errorf("openai http %d: %w", apierr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai timeout: %w", domain.ErrTransient)
	}
	// Network-level failures from the SDK are treated as transient.
	return fmt.Errorf("openai: %v: %w", err, domain.ErrTransient)
}
