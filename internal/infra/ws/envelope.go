package ws

import (
	"encoding/json"
	"time"

	"chattrain/internal/domain/model"
	"chattrain/internal/feedback"
)

// Envelope message types exchanged over /chat/{session_id}.
const (
	TypeSessionStart     = "session_start"
	TypeUserMessage      = "user_message"
	TypeAssistantMessage = "assistant_message"
	TypeSessionEnd       = "session_end"
	TypeError            = "error"
)

// Meta mirrors the metadata block attached to assistant and feedback frames.
type Meta struct {
	Tokens   int             `json:"tokens,omitempty"`
	Feedback *model.Feedback `json:"feedback,omitempty"`
	Fallback bool            `json:"fallback,omitempty"`
}

// Envelope is the single frame shape in both directions. Fields are
// populated per Type; unknown inbound fields are ignored.
type Envelope struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id,omitempty"`
	ScenarioID string            `json:"scenario_id,omitempty"`
	MessageID  string            `json:"message_id,omitempty"`
	Content    string            `json:"content,omitempty"`
	Timestamp  string            `json:"timestamp,omitempty"`
	Meta       *Meta             `json:"metadata,omitempty"`
	Summary    *feedback.Summary `json:"summary,omitempty"`
	Code       string            `json:"code,omitempty"`
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// DecodeEnvelope parses an inbound frame and rejects frames with no type.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func errorEnvelope(sessionID, code, msg string) *Envelope {
	return &Envelope{
		Type:      TypeError,
		SessionID: sessionID,
		Code:      code,
		Content:   msg,
		Timestamp: stamp(time.Now()),
	}
}
