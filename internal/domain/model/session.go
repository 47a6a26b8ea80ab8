package model

import (
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is one learner's run through a scenario.
type Session struct {
	ID          string        `json:"id"`
	ScenarioID  string        `json:"scenario_id"`
	UserID      string        `json:"user_id"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Data        []byte        `json:"-"` // opaque JSON auxiliary data
}

func NewSession(id, scenarioID, userID string) *Session {
	return &Session{
		ID:         id,
		ScenarioID: scenarioID,
		UserID:     userID,
		Status:     SessionActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *Session) Completed() bool { return s.Status == SessionCompleted }

// Feedback is derived per user message, never persisted on its own.
type Feedback struct {
	Score           int      `json:"score"`
	Comment         string   `json:"comment"`
	MatchedKeywords []string `json:"matched_keywords"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// MessageMeta is the optional metadata column on a message row.
type MessageMeta struct {
	Tokens   int       `json:"tokens,omitempty"`
	Feedback *Feedback `json:"feedback,omitempty"`
	Fallback bool      `json:"fallback,omitempty"`
}

// Message is one transcript row. IDs are ULIDs, so lexical order matches
// insertion order within a session.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      string      `json:"role"` // "user" | "assistant"
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Meta      MessageMeta `json:"metadata"`
}
