package ai

import (
	"context"

	"chattrain/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*MockAdapter)(nil)

// MockAdapter serves canned, deterministic responses for operation without a
// live completion backend. The reply depends only on the turn count, so test
// transcripts are reproducible.
type MockAdapter struct{}

var cannedReplies = []string{
	"I see. Could you walk me through what happens when you try that?",
	"That makes sense, thank you. What would you suggest I do next?",
	"Okay, I followed your instructions. It looks a bit better now.",
	"Understood. Is there anything else I should keep in mind?",
	"Thanks for your patience, that seems to have sorted it out.",
}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (m *MockAdapter) Complete(ctx context.Context, req adapter.ChatRequest) (string, error) {
	turn := 0
	for _, msg := range req.Messages {
		if msg.Role == "assistant" {
			turn++
		}
	}
	return cannedReplies[turn%len(cannedReplies)], nil
}
