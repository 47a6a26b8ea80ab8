package ws

import (
	"context"
	"testing"
	"time"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/feedback"
	"chattrain/internal/usecase"
)

// fakeTrainingUC scripts the use-case surface so the protocol machine can be
// driven without a store or model behind it.
type fakeTrainingUC struct {
	session    *model.Session
	turnResult *usecase.TurnResult
	turnErr    error
	ended      int
}

func (f *fakeTrainingUC) StartSession(ctx context.Context, scenarioID, userID string) (*model.Session, error) {
	return f.session, nil
}

func (f *fakeTrainingUC) FindSession(ctx context.Context, id string) (*model.Session, error) {
	if f.session == nil || f.session.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.session, nil
}

func (f *fakeTrainingUC) HandleUserMessage(ctx context.Context, sessionID, content string) (*usecase.TurnResult, error) {
	if f.turnErr != nil {
		return nil, f.turnErr
	}
	return f.turnResult, nil
}

func (f *fakeTrainingUC) Transcript(ctx context.Context, sessionID string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeTrainingUC) EndSession(ctx context.Context, sessionID string) error {
	f.ended++
	return nil
}

func activeSession() *model.Session {
	return &model.Session{
		ID:         "sess-1",
		ScenarioID: "frustrated_customer",
		UserID:     "trainee-1",
		Status:     model.SessionActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func turnResult(completed bool) *usecase.TurnResult {
	res := &usecase.TurnResult{
		UserMessage:      &model.Message{ID: "01A", Role: "user", Content: "sorry"},
		AssistantMessage: &model.Message{ID: "01B", Role: "assistant", Content: "Okay.", Timestamp: time.Now()},
		Feedback:         model.Feedback{Score: 90, Comment: "Excellent"},
		Completed:        completed,
	}
	if completed {
		res.Summary = &feedback.Summary{AverageScore: 90, Text: "Great"}
	}
	return res
}

func startEngine(t *testing.T, uc usecase.TrainingUseCase) *Engine {
	t.Helper()
	e := NewEngine(uc, "sess-1")
	out, err := e.Handle(context.Background(), &Envelope{Type: TypeSessionStart})
	if err != nil {
		t.Fatalf("session_start: %v", err)
	}
	if len(out) != 1 || out[0].Type != TypeSessionStart {
		t.Fatalf("session_start reply = %+v", out)
	}
	return e
}

func TestEngineStartAck(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession()}
	e := startEngine(t, uc)
	if e.Closed() {
		t.Fatal("engine closed after a successful start")
	}
}

func TestEngineStartUnknownSession(t *testing.T) {
	e := NewEngine(&fakeTrainingUC{}, "sess-1")
	out, err := e.Handle(context.Background(), &Envelope{Type: TypeSessionStart})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Type != TypeError || out[0].Code != "not_found" {
		t.Fatalf("reply = %+v", out)
	}
	if !e.Closed() {
		t.Fatal("engine must close for an unknown session")
	}
}

func TestEngineStartCompletedSession(t *testing.T) {
	s := activeSession()
	s.Status = model.SessionCompleted
	e := NewEngine(&fakeTrainingUC{session: s}, "sess-1")
	out, err := e.Handle(context.Background(), &Envelope{Type: TypeSessionStart})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Code != "session_closed" {
		t.Fatalf("code = %q", out[0].Code)
	}
}

func TestEngineRequiresStartFirst(t *testing.T) {
	e := NewEngine(&fakeTrainingUC{session: activeSession()}, "sess-1")
	out, err := e.Handle(context.Background(), &Envelope{Type: TypeUserMessage, Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Type != TypeError || out[0].Code != "protocol" {
		t.Fatalf("reply = %+v", out)
	}
}

func TestEngineDoubleStartRejected(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession()}
	e := startEngine(t, uc)
	out, err := e.Handle(context.Background(), &Envelope{Type: TypeSessionStart})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Type != TypeError || out[0].Code != "protocol" {
		t.Fatalf("reply = %+v", out)
	}
}

func TestEngineUserMessageFlow(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession(), turnResult: turnResult(false)}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: TypeUserMessage, Content: "sorry"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("replies = %d, want 1", len(out))
	}
	msg := out[0]
	if msg.Type != TypeAssistantMessage || msg.Content != "Okay." {
		t.Fatalf("reply = %+v", msg)
	}
	if msg.Meta == nil || msg.Meta.Feedback == nil || msg.Meta.Feedback.Score != 90 {
		t.Fatalf("feedback metadata missing: %+v", msg.Meta)
	}
}

func TestEngineCompletionEmitsSessionEnd(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession(), turnResult: turnResult(true)}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: TypeUserMessage, Content: "sorry"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("replies = %d, want assistant_message + session_end", len(out))
	}
	if out[1].Type != TypeSessionEnd || out[1].Summary == nil {
		t.Fatalf("terminal frame = %+v", out[1])
	}
	if !e.Closed() {
		t.Fatal("engine must close after completion")
	}
}

func TestEngineClosedSessionError(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession(), turnErr: domain.ErrSessionClosed}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: TypeUserMessage, Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Code != "session_closed" {
		t.Fatalf("code = %q", out[0].Code)
	}
	if !e.Closed() {
		t.Fatal("engine must close once the session is completed")
	}
}

func TestEngineEmptyMessageError(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession(), turnErr: domain.ErrInvalidArgument}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: TypeUserMessage})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Code != "empty_message" {
		t.Fatalf("code = %q", out[0].Code)
	}
	if e.Closed() {
		t.Fatal("an empty message must not end the session")
	}
}

func TestEngineExplicitEnd(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession()}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: TypeSessionEnd})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Type != TypeSessionEnd {
		t.Fatalf("reply = %+v", out)
	}
	if uc.ended != 1 {
		t.Fatalf("EndSession calls = %d", uc.ended)
	}
	if !e.Closed() {
		t.Fatal("engine must close after session_end")
	}

	// A second end frame is a no-op.
	out, err = e.Handle(context.Background(), &Envelope{Type: TypeSessionEnd})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 || uc.ended != 1 {
		t.Fatalf("repeat end: replies=%d ended=%d", len(out), uc.ended)
	}
}

func TestEngineUnknownType(t *testing.T) {
	uc := &fakeTrainingUC{session: activeSession()}
	e := startEngine(t, uc)

	out, err := e.Handle(context.Background(), &Envelope{Type: "dance"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Type != TypeError || out[0].Code != "unknown_type" {
		t.Fatalf("reply = %+v", out)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"user_message","content":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeUserMessage || env.Content != "hi" {
		t.Fatalf("env = %+v", env)
	}
	if _, err := DecodeEnvelope([]byte("{")); err == nil {
		t.Fatal("malformed JSON must error")
	}
}
