package usecase

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/adapter"
)

const defaultSystemPrompt = `You are a professional training partner helping users practice real-world conversation scenarios.
Your role is to simulate realistic interactions based on the given scenario while maintaining appropriate professionalism and context.`

// promptTokenBudget bounds the transcript window handed to the completion
// service; older turns are dropped first.
const promptTokenBudget = 3000

// PromptBuilder constructs the system prompt and transcript window for a
// completion call from the scenario persona and prior turns.
type PromptBuilder struct {
	encoder *tiktoken.Tiktoken
}

func NewPromptBuilder() *PromptBuilder {
	// cl100k_base covers the gpt-4o family; a nil encoder falls back to a
	// character-count estimate.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &PromptBuilder{encoder: enc}
}

// SystemPrompt renders the bot persona for a scenario.
func (p *PromptBuilder) SystemPrompt(sc *model.Scenario, turn model.BotTurn) string {
	if sc == nil {
		return defaultSystemPrompt
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional training partner for a %q scenario.\n", sc.Title)
	if sc.Description != "" {
		fmt.Fprintf(&b, "\nScenario description: %s\n", sc.Description)
	}
	b.WriteString(`
You are playing the counterpart role in this conversation (for example a
customer or a user seeking help), not the trainee. Stay in character, respond
naturally to the trainee's attempts to help you, and give them opportunities
to demonstrate their skills.`)
	if turn.Content != "" {
		fmt.Fprintf(&b, "\n\nYour current concern, in your own words: %s", turn.Content)
	}
	return b.String()
}

// Window trims the transcript from the front until it fits the token budget,
// always keeping at least the latest message.
func (p *PromptBuilder) Window(transcript []model.Message) []adapter.Message {
	msgs := make([]adapter.Message, 0, len(transcript))
	for _, m := range transcript {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	for len(msgs) > 1 && p.tokens(msgs) > promptTokenBudget {
		msgs = msgs[1:]
	}
	return msgs
}

func (p *PromptBuilder) tokens(msgs []adapter.Message) int {
	total := 0
	for _, m := range msgs {
		total += p.CountTokens(m.Content)
	}
	return total
}

// CountTokens estimates the token cost of a text.
func (p *PromptBuilder) CountTokens(text string) int {
	if p.encoder == nil {
		return len(text) / 4
	}
	return len(p.encoder.Encode(text, nil, nil))
}
