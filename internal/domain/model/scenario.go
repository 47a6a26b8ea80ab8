package model

import (
	"strings"
	"time"
)

// BotTurn is one scripted bot message paired with the keywords the learner is
// expected to use when answering it.
type BotTurn struct {
	Content          string   `json:"content" yaml:"content"`
	ExpectedKeywords []string `json:"expected_keywords" yaml:"expected_keywords"`
}

// LLMConfig holds the completion parameters a scenario requests.
type LLMConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// DocumentRef points to a supporting file inside the scenario directory.
type DocumentRef struct {
	Filename string `json:"filename" yaml:"filename"`
	Title    string `json:"title" yaml:"title"`
}

// Completion describes when a session counts as finished.
type Completion struct {
	MinExchanges     int      `json:"min_exchanges" yaml:"min_exchanges"`
	RequiredKeywords []string `json:"required_keywords" yaml:"required_keywords"`
}

// Scenario is a validated training exercise definition. Instances are
// immutable after parse; a changed file yields a new value, never an in-place
// edit.
type Scenario struct {
	ID              string        `json:"id" yaml:"id"`
	Title           string        `json:"title" yaml:"title"`
	Description     string        `json:"description" yaml:"description"`
	DurationMinutes int           `json:"duration_minutes" yaml:"duration_minutes"`
	BotMessages     []BotTurn     `json:"bot_messages" yaml:"bot_messages"`
	LLM             LLMConfig     `json:"llm_config" yaml:"llm_config"`
	Documents       []DocumentRef `json:"documents" yaml:"documents"`
	Completion      Completion    `json:"completion" yaml:"completion"`

	LoadedAt time.Time `json:"-" yaml:"-"`
}

// Turn returns the scripted turn for the given user-message index. Past the
// end of the script the last turn keeps applying.
func (s *Scenario) Turn(i int) BotTurn {
	if len(s.BotMessages) == 0 {
		return BotTurn{}
	}
	if i < 0 {
		i = 0
	}
	if i >= len(s.BotMessages) {
		i = len(s.BotMessages) - 1
	}
	return s.BotMessages[i]
}

// ScriptExhausted reports whether userMessages user turns cover every
// scripted bot message.
func (s *Scenario) ScriptExhausted(userMessages int) bool {
	return userMessages >= len(s.BotMessages)
}

// MissingKeywords returns the required completion keywords not present in any
// of the given user texts (case-insensitive).
func (s *Scenario) MissingKeywords(userTexts []string) []string {
	var joined strings.Builder
	for _, t := range userTexts {
		joined.WriteString(strings.ToLower(t))
		joined.WriteString("\n")
	}
	transcript := joined.String()

	var missing []string
	for _, kw := range s.Completion.RequiredKeywords {
		if !strings.Contains(transcript, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	return missing
}

// ScenarioSummary is the denormalized listing row kept in the relational
// store. It is a cache of the definition file, never authoritative.
type ScenarioSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Config    []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
