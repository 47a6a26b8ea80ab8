package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/adapter"
	"chattrain/internal/domain/ports/repository"
	"chattrain/internal/feedback"
	"chattrain/internal/infra/logging"
	"chattrain/internal/infra/metrics"
	red "chattrain/internal/infra/redis"
)

const genericFallback = "I'm sorry, I lost my train of thought for a moment. Could you repeat that, or tell me a bit more about what you'd suggest?"

// ScenarioSource is the slice of the content loader the use case needs.
type ScenarioSource interface {
	Load(ctx context.Context, id string) (*model.Scenario, error)
}

// CallLimiter gates completion calls to at most `limit` per window.
// A nil limiter means no gating (tests, dev without redis).
type CallLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SessionSnapshotCache is an optional read-through cache for session rows.
type SessionSnapshotCache interface {
	Store(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
}

// TurnResult is everything the protocol handler needs to answer one user
// message.
type TurnResult struct {
	UserMessage      *model.Message
	AssistantMessage *model.Message
	Feedback         model.Feedback
	Fallback         bool
	Completed        bool
	Summary          *feedback.Summary
}

// Compile-time check
var _ TrainingUseCase = (*trainingUC)(nil)

type TrainingUseCase interface {
	StartSession(ctx context.Context, scenarioID, userID string) (*model.Session, error)
	FindSession(ctx context.Context, sessionID string) (*model.Session, error)
	HandleUserMessage(ctx context.Context, sessionID, content string) (*TurnResult, error)
	Transcript(ctx context.Context, sessionID string) ([]model.Message, error)
	EndSession(ctx context.Context, sessionID string) error
}

type trainingUC struct {
	sessions  repository.SessionRepository
	scenarios ScenarioSource
	ai        adapter.CompletionAdapter
	prompts   *PromptBuilder
	limiter   CallLimiter
	cache     SessionSnapshotCache
	minCall   time.Duration
	defModel  string
	log       *zerolog.Logger
}

func NewTrainingUseCase(
	sessions repository.SessionRepository,
	scenarios ScenarioSource,
	ai adapter.CompletionAdapter,
	limiter CallLimiter,
	cache SessionSnapshotCache,
	minCallInterval time.Duration,
	defaultModel string,
	logger *zerolog.Logger,
) *trainingUC {
	l := logger.With().Str("component", "TrainingUC").Logger()
	return &trainingUC{
		sessions:  sessions,
		scenarios: scenarios,
		ai:        ai,
		prompts:   NewPromptBuilder(),
		limiter:   limiter,
		cache:     cache,
		minCall:   minCallInterval,
		defModel:  defaultModel,
		log:       &l,
	}
}

func (u *trainingUC) StartSession(ctx context.Context, scenarioID, userID string) (*model.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	// A session can only be created against a loadable scenario.
	if _, err := u.scenarios.Load(ctx, scenarioID); err != nil {
		return nil, err
	}
	s := model.NewSession(uuid.NewString(), scenarioID, userID)
	if err := u.sessions.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	if u.cache != nil {
		_ = u.cache.Store(ctx, s)
	}
	metrics.IncSessionStarted()
	ctx = logging.WithScenarioID(logging.WithUserID(ctx, userID), scenarioID)
	logging.With(logging.WithSessionID(ctx, s.ID), u.log).Info().Msg("session started")
	return s, nil
}

func (u *trainingUC) FindSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if u.cache != nil {
		if s, err := u.cache.Get(ctx, sessionID); err == nil && s != nil {
			return s, nil
		}
	}
	return u.sessions.FindSession(ctx, sessionID)
}

func (u *trainingUC) Transcript(ctx context.Context, sessionID string) ([]model.Message, error) {
	if _, err := u.sessions.FindSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return u.sessions.ListMessages(ctx, sessionID)
}

// EndSession closes a session regardless of completion criteria. Idempotent.
func (u *trainingUC) EndSession(ctx context.Context, sessionID string) error {
	err := u.sessions.CompleteSession(ctx, sessionID, time.Now().UTC())
	if err == nil && u.cache != nil {
		if s, ferr := u.sessions.FindSession(ctx, sessionID); ferr == nil {
			_ = u.cache.Store(ctx, s)
		}
	}
	return err
}

// HandleUserMessage runs the full turn pipeline: persist the user message,
// score it, obtain the bot reply (degrading to a scripted utterance when the
// completion service is unavailable), persist the reply, and evaluate the
// completion criteria.
func (u *trainingUC) HandleUserMessage(ctx context.Context, sessionID, content string) (*TurnResult, error) {
	log := logging.With(logging.WithSessionID(ctx, sessionID), u.log)
	defer logging.TraceDuration(log, "TrainingUC.HandleUserMessage")()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidArgument
	}

	s, err := u.sessions.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, domain.ErrSessionClosed
	}
	sc, err := u.scenarios.Load(ctx, s.ScenarioID)
	if err != nil {
		return nil, err
	}

	transcript, err := u.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	userCount := 0
	for _, m := range transcript {
		if m.Role == "user" {
			userCount++
		}
	}

	turn := sc.Turn(userCount)
	fb := feedback.Score(content, turn.ExpectedKeywords)
	userMsg := &model.Message{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().UTC(),
		Meta: model.MessageMeta{
			Tokens: u.prompts.CountTokens(content),
			Feedback: &model.Feedback{
				Score:           fb.Score,
				Comment:         fb.Comment,
				MatchedKeywords: fb.MatchedKeywords,
				Suggestions:     fb.Suggestions,
			},
		},
	}
	if err := u.sessions.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	transcript = append(transcript, *userMsg)

	reply, usedFallback := u.botReply(ctx, sc, transcript, userCount)

	botMsg := &model.Message{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
		Timestamp: time.Now().UTC(),
		Meta: model.MessageMeta{
			Tokens:   u.prompts.CountTokens(reply),
			Fallback: usedFallback,
		},
	}
	if err := u.sessions.AppendMessage(ctx, botMsg); err != nil {
		return nil, err
	}
	transcript = append(transcript, *botMsg)

	result := &TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: botMsg,
		Feedback:         *userMsg.Meta.Feedback,
		Fallback:         usedFallback,
	}

	if u.criteriaMet(sc, transcript) {
		now := time.Now().UTC()
		if err := u.sessions.CompleteSession(ctx, sessionID, now); err != nil {
			return nil, err
		}
		if u.cache != nil {
			if fresh, ferr := u.sessions.FindSession(ctx, sessionID); ferr == nil {
				_ = u.cache.Store(ctx, fresh)
			}
		}
		metrics.IncSessionCompleted()
		sum := u.summarize(sc, transcript)
		result.Completed = true
		result.Summary = &sum
		log.Info().Float64("average_score", sum.AverageScore).Msg("session completed")
	}
	return result, nil
}

// botReply obtains the assistant utterance, preferring the completion
// service but never failing the turn: rate-limit denials and exhausted
// retries degrade to the scripted turn.
func (u *trainingUC) botReply(ctx context.Context, sc *model.Scenario, transcript []model.Message, userCount int) (string, bool) {
	fallback := genericFallback
	if next := userCount + 1; next < len(sc.BotMessages) {
		fallback = sc.BotMessages[next].Content
	}

	if u.limiter != nil {
		key := red.CompletionCallKey(transcript[len(transcript)-1].SessionID)
		allowed, err := u.limiter.Allow(ctx, key, 1, u.minCall)
		if err != nil {
			u.log.Warn().Err(err).Msg("rate limiter unavailable, allowing call")
		} else if !allowed {
			metrics.IncAIFallback()
			return fallback, true
		}
	}

	llmModel := sc.LLM.Model
	if llmModel == "" {
		llmModel = u.defModel
	}
	reply, err := u.ai.Complete(ctx, adapter.ChatRequest{
		Model:       llmModel,
		System:      u.prompts.SystemPrompt(sc, sc.Turn(userCount)),
		Messages:    u.prompts.Window(transcript),
		Temperature: sc.LLM.Temperature,
		MaxTokens:   sc.LLM.MaxTokens,
	})
	if err != nil {
		metrics.IncAIFallback()
		u.log.Warn().Err(err).Msg("completion failed, using fallback utterance")
		return fallback, true
	}
	return reply, false
}

func (u *trainingUC) criteriaMet(sc *model.Scenario, transcript []model.Message) bool {
	var userTexts []string
	for _, m := range transcript {
		if m.Role == "user" {
			userTexts = append(userTexts, m.Content)
		}
	}
	if !sc.ScriptExhausted(len(userTexts)) {
		return false
	}
	if len(userTexts) < sc.Completion.MinExchanges {
		return false
	}
	return len(sc.MissingKeywords(userTexts)) == 0
}

func (u *trainingUC) summarize(sc *model.Scenario, transcript []model.Message) feedback.Summary {
	var fbs []model.Feedback
	var quality []map[string]float64
	i := 0
	for _, m := range transcript {
		if m.Role != "user" {
			continue
		}
		if m.Meta.Feedback != nil {
			fbs = append(fbs, *m.Meta.Feedback)
		}
		// Re-score for quality breakdowns; the scorer is deterministic.
		res := feedback.Score(m.Content, sc.Turn(i).ExpectedKeywords)
		quality = append(quality, res.QualityScores)
		i++
	}
	return feedback.Summarize(fbs, quality)
}
