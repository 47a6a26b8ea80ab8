package repository

import (
	"context"
	"time"

	"chattrain/internal/domain/model"
)

// SessionRepository is the single write path for sessions and messages. Only
// the training use case calls the mutating operations.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	FindSession(ctx context.Context, id string) (*model.Session, error)
	// CompleteSession transitions active -> completed. Calling it on an
	// already-completed session is a no-op and keeps the original timestamp.
	CompleteSession(ctx context.Context, id string, at time.Time) error
	AppendMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
}
