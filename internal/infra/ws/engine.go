package ws

import (
	"context"
	"errors"
	"time"

	"chattrain/internal/domain"
	"chattrain/internal/infra/metrics"
	"chattrain/internal/usecase"
)

type engineState int

const (
	stateAwaitingStart engineState = iota
	stateActive
	stateClosed
)

// Engine drives the session protocol for one connection. The transport
// feeds it decoded frames and writes back whatever it returns, so the
// whole state machine is exercisable without a socket.
type Engine struct {
	uc        usecase.TrainingUseCase
	sessionID string
	state     engineState
}

func NewEngine(uc usecase.TrainingUseCase, sessionID string) *Engine {
	return &Engine{uc: uc, sessionID: sessionID}
}

// Closed reports whether the protocol reached a terminal state and the
// transport should stop reading.
func (e *Engine) Closed() bool { return e.state == stateClosed }

// Handle processes one inbound frame and returns the frames to send back.
// Protocol violations produce an error frame, not a Go error; a non-nil
// error means the connection itself should be torn down.
func (e *Engine) Handle(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	metrics.IncWSMessage(env.Type)
	switch env.Type {
	case TypeSessionStart:
		return e.handleStart(ctx)
	case TypeUserMessage:
		return e.handleUserMessage(ctx, env)
	case TypeSessionEnd:
		return e.handleEnd(ctx)
	default:
		return []*Envelope{errorEnvelope(e.sessionID, "unknown_type", "unsupported message type: "+env.Type)}, nil
	}
}

func (e *Engine) handleStart(ctx context.Context) ([]*Envelope, error) {
	if e.state != stateAwaitingStart {
		return []*Envelope{errorEnvelope(e.sessionID, "protocol", "session already started")}, nil
	}
	s, err := e.uc.FindSession(ctx, e.sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.state = stateClosed
			return []*Envelope{errorEnvelope(e.sessionID, "not_found", "unknown session")}, nil
		}
		return nil, err
	}
	if s.Completed() {
		e.state = stateClosed
		return []*Envelope{errorEnvelope(e.sessionID, "session_closed", "session is already completed")}, nil
	}
	e.state = stateActive
	return []*Envelope{{
		Type:       TypeSessionStart,
		SessionID:  s.ID,
		ScenarioID: s.ScenarioID,
		Timestamp:  stamp(time.Now()),
	}}, nil
}

func (e *Engine) handleUserMessage(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	if e.state != stateActive {
		return []*Envelope{errorEnvelope(e.sessionID, "protocol", "send session_start first")}, nil
	}
	res, err := e.uc.HandleUserMessage(ctx, e.sessionID, env.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			return []*Envelope{errorEnvelope(e.sessionID, "empty_message", "message content is required")}, nil
		case errors.Is(err, domain.ErrSessionClosed):
			e.state = stateClosed
			return []*Envelope{errorEnvelope(e.sessionID, "session_closed", "session is already completed")}, nil
		case errors.Is(err, domain.ErrNotFound):
			e.state = stateClosed
			return []*Envelope{errorEnvelope(e.sessionID, "not_found", "unknown session or scenario")}, nil
		default:
			return nil, err
		}
	}

	out := []*Envelope{{
		Type:      TypeAssistantMessage,
		SessionID: e.sessionID,
		MessageID: res.AssistantMessage.ID,
		Content:   res.AssistantMessage.Content,
		Timestamp: stamp(res.AssistantMessage.Timestamp),
		Meta: &Meta{
			Tokens:   res.AssistantMessage.Meta.Tokens,
			Feedback: &res.Feedback,
			Fallback: res.Fallback,
		},
	}}
	if res.Completed {
		e.state = stateClosed
		out = append(out, &Envelope{
			Type:      TypeSessionEnd,
			SessionID: e.sessionID,
			Summary:   res.Summary,
			Timestamp: stamp(time.Now()),
		})
	}
	return out, nil
}

func (e *Engine) handleEnd(ctx context.Context) ([]*Envelope, error) {
	if e.state == stateClosed {
		return nil, nil
	}
	e.state = stateClosed
	if err := e.uc.EndSession(ctx, e.sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return []*Envelope{{
		Type:      TypeSessionEnd,
		SessionID: e.sessionID,
		Timestamp: stamp(time.Now()),
	}}, nil
}
