package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/adapter"
)

// ---- Fakes ----

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	messages map[string][]model.Message
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: make(map[string]*model.Session),
		messages: make(map[string][]model.Message),
	}
}

func (r *memSessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindSession(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) CompleteSession(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Status == model.SessionCompleted {
		return nil
	}
	s.Status = model.SessionCompleted
	s.CompletedAt = &at
	return nil
}

func (r *memSessionRepo) AppendMessage(ctx context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[m.SessionID]; !ok {
		return domain.ErrNotFound
	}
	r.messages[m.SessionID] = append(r.messages[m.SessionID], *m)
	return nil
}

func (r *memSessionRepo) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	return out, nil
}

type fakeScenarios struct {
	scenario *model.Scenario
}

func (f *fakeScenarios) Load(ctx context.Context, id string) (*model.Scenario, error) {
	if f.scenario == nil || f.scenario.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.scenario, nil
}

type fakeAI struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
}

func (f *fakeAI) Complete(ctx context.Context, req adapter.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	reply := "Understood."
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return reply, nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return f.allow, f.err
}

// ---- Fixtures ----

func testScenario() *model.Scenario {
	return &model.Scenario{
		ID:    "frustrated_customer",
		Title: "Frustrated Customer",
		BotMessages: []model.BotTurn{
			{Content: "My order arrived broken!", ExpectedKeywords: []string{"sorry", "replacement"}},
			{Content: "How long will shipping take?", ExpectedKeywords: []string{"shipping"}},
			{Content: "Fine, thanks for the help.", ExpectedKeywords: nil},
		},
		LLM:        model.LLMConfig{Temperature: 0.7, MaxTokens: 200},
		Completion: model.Completion{MinExchanges: 3, RequiredKeywords: []string{"sorry"}},
	}
}

var errBoom = errors.New("boom")
