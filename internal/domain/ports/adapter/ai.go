package adapter

import "context"

// Message is one prior conversation turn handed to the completion service.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ChatRequest carries everything a provider needs for one completion call.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionAdapter is the narrow capability the protocol handler depends on:
// turns + config in, next bot utterance out. Transient failures (timeouts,
// rate limits, 5xx) wrap domain.ErrTransient so callers can retry.
type CompletionAdapter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
