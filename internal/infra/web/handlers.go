package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var schemaErr *domain.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: schemaErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrSecurity):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrSessionClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: "session is completed"})
	case errors.Is(err, domain.ErrTransient):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable"})
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scenarioListItem struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	all := s.loader.ListAll(r.Context())
	items := make([]scenarioListItem, 0, len(all))
	for _, sc := range all {
		items = append(items, scenarioListItem{
			ID:              sc.ID,
			Title:           sc.Title,
			Description:     sc.Description,
			DurationMinutes: sc.DurationMinutes,
		})
	}
	if len(items) == 0 && s.snapshots != nil {
		// Content directory empty or unreadable; serve the last good catalog.
		items = s.listFromSnapshots(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": items})
}

func (s *Server) listFromSnapshots(ctx context.Context) []scenarioListItem {
	rows, err := s.snapshots.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot catalog fallback failed")
		return nil
	}
	items := make([]scenarioListItem, 0, len(rows))
	for _, row := range rows {
		item := scenarioListItem{ID: row.ID, Title: row.Title}
		var sc model.Scenario
		if err := json.Unmarshal(row.Config, &sc); err == nil {
			item.Description = sc.Description
			item.DurationMinutes = sc.DurationMinutes
		}
		items = append(items, item)
	}
	return items
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.loader.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleScenarioDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.loader.Documents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type createSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
	UserID     string `json:"user_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	sess, err := s.uc.StartSession(r.Context(), req.ScenarioID, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.FindSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.uc.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.files.Serve(chi.URLParam(r, "scenario_id"), chi.URLParam(r, "filename"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == doc.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("ETag", doc.ETag)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

type adminLoginRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.adminKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key != s.adminKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContentStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.loader.Stats())
}

func (s *Server) handleContentReload(w http.ResponseWriter, r *http.Request) {
	s.loader.Reload()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cache cleared"})
}

func (s *Server) handleValidateScenario(w http.ResponseWriter, r *http.Request) {
	report := s.loader.Validate(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, report)
}
