package ws

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chattrain/internal/infra/logging"
	"chattrain/internal/infra/metrics"
	"chattrain/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from the training UI origin; same-host
	// deployments serve both, so origin checking stays permissive here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades /chat/{session_id} requests and pumps frames through a
// per-connection Engine.
type Handler struct {
	uc  usecase.TrainingUseCase
	log *zerolog.Logger
}

func NewHandler(uc usecase.TrainingUseCase, logger *zerolog.Logger) *Handler {
	l := logger.With().Str("component", "WSHandler").Logger()
	return &Handler{uc: uc, log: &l}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	metrics.IncWSConnections()
	defer metrics.DecWSConnections()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.pingLoop(conn, done)
	defer close(done)

	ctx := logging.WithSessionID(r.Context(), sessionID)
	engine := NewEngine(h.uc, sessionID)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket read failed")
			}
			return
		}
		env, err := DecodeEnvelope(raw)
		if err != nil {
			if werr := h.write(conn, errorEnvelope(sessionID, "bad_frame", "malformed JSON frame")); werr != nil {
				return
			}
			continue
		}
		replies, err := engine.Handle(ctx, env)
		if err != nil {
			h.log.Error().Err(err).Str("session_id", sessionID).Msg("session protocol failure")
			_ = h.write(conn, errorEnvelope(sessionID, "internal", "internal error"))
			return
		}
		for _, reply := range replies {
			if err := h.write(conn, reply); err != nil {
				return
			}
		}
		if engine.Closed() {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, env *Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
