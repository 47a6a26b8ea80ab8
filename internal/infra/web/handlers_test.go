package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chattrain/internal/content"
	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/usecase"
)

type fakeTrainingUC struct {
	session *model.Session
	msgs    []model.Message
}

func (f *fakeTrainingUC) StartSession(ctx context.Context, scenarioID, userID string) (*model.Session, error) {
	if scenarioID != "alpha_v1" {
		return nil, domain.ErrNotFound
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return f.session, nil
}

func (f *fakeTrainingUC) FindSession(ctx context.Context, id string) (*model.Session, error) {
	if f.session == nil || f.session.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.session, nil
}

func (f *fakeTrainingUC) HandleUserMessage(ctx context.Context, sessionID, content string) (*usecase.TurnResult, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeTrainingUC) Transcript(ctx context.Context, sessionID string) ([]model.Message, error) {
	if f.session == nil || f.session.ID != sessionID {
		return nil, domain.ErrNotFound
	}
	return f.msgs, nil
}

func (f *fakeTrainingUC) EndSession(ctx context.Context, sessionID string) error { return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "alpha_v1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	y := "id: alpha_v1\ntitle: Alpha\ndescription: Demo.\nbot_messages:\n  - content: Hello!\n    expected_keywords: [sorry]\ndocuments:\n  - filename: guide.md\n    title: Guide\n"
	if err := os.WriteFile(filepath.Join(dir, "scenario.yaml"), []byte(y), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "guide.md"), []byte("# Guide"), 0o644); err != nil {
		t.Fatal(err)
	}

	nop := zerolog.Nop()
	loader := content.NewLoader(root, time.Hour, nil, &nop)
	files := content.NewFileServer(root, 1<<20, &nop)
	uc := &fakeTrainingUC{session: &model.Session{
		ID:         "sess-1",
		ScenarioID: "alpha_v1",
		UserID:     "trainee-1",
		Status:     model.SessionActive,
		CreatedAt:  time.Now().UTC(),
	}}
	auth := NewAuthManager("test-secret", false, time.Minute)
	return NewServer(uc, loader, files, nil, nil, auth, "admin-key", &nop), root
}

func doRequest(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListScenarios(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/scenarios", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Scenarios []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"scenarios"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Scenarios) != 1 || body.Scenarios[0].ID != "alpha_v1" {
		t.Fatalf("scenarios = %+v", body.Scenarios)
	}
}

type fakeSnapshotRepo struct {
	rows []model.ScenarioSummary
}

func (f *fakeSnapshotRepo) Upsert(ctx context.Context, sum *model.ScenarioSummary) error {
	return nil
}

func (f *fakeSnapshotRepo) List(ctx context.Context) ([]model.ScenarioSummary, error) {
	return f.rows, nil
}

func TestListScenariosSnapshotFallback(t *testing.T) {
	s, _ := newTestServer(t)
	empty := t.TempDir()
	nop := zerolog.Nop()
	s.loader = content.NewLoader(empty, time.Hour, nil, &nop)
	cfg, _ := json.Marshal(model.Scenario{ID: "beta_v1", Title: "Beta", Description: "Cached.", DurationMinutes: 20})
	s.snapshots = &fakeSnapshotRepo{rows: []model.ScenarioSummary{{ID: "beta_v1", Title: "Beta", Config: cfg}}}

	rec := doRequest(t, s, http.MethodGet, "/api/scenarios", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Scenarios []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"scenarios"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Scenarios) != 1 || body.Scenarios[0].ID != "beta_v1" || body.Scenarios[0].Description != "Cached." {
		t.Fatalf("scenarios = %+v", body.Scenarios)
	}
}

func TestGetScenario(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/scenarios/alpha_v1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/scenarios/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown scenario status = %d", rec.Code)
	}
}

func TestCreateSession(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/sessions",
		`{"scenario_id":"alpha_v1","user_id":"trainee-1"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var sess model.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	if sess.ID != "sess-1" || sess.Status != model.SessionActive {
		t.Fatalf("session = %+v", sess)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/sessions", `{"scenario_id":"ghost","user_id":"u"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown scenario status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/sessions", `{"scenario_id":"alpha_v1"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/sessions", `not json`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}
}

func TestGetSessionAndMessages(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := doRequest(t, s, http.MethodGet, "/api/sessions/sess-1", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/sessions/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	rec := doRequest(t, s, http.MethodGet, "/api/sessions/sess-1/messages", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"messages"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestServeDocument(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/documents/alpha_v1/guide.md", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/markdown; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag header")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/documents/alpha_v1/guide.md", "",
		map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d", rec.Code)
	}
}

func TestDocumentTraversalBlocked(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/documents/alpha_v1/file.md", nil)
	// Inject the traversal directly; a URL parser would normalize it away.
	rec := httptest.NewRecorder()
	req.URL.Path = "/api/documents/alpha_v1/..%2f..%2fetc%2fpasswd"
	req.URL.RawPath = req.URL.Path
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound && rec.Code != http.StatusBadRequest {
		t.Fatalf("traversal request status = %d", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/documents/alpha_v1/secret.exe", "", nil); rec.Code != http.StatusNotFound && rec.Code != http.StatusBadRequest {
		t.Fatalf("disallowed extension status = %d", rec.Code)
	}
}

func TestAdminGuard(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := doRequest(t, s, http.MethodGet, "/api/content/stats", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/content/stats", "",
		map[string]string{"Authorization": "Bearer garbage"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rec.Code)
	}
}

func TestAdminLoginAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(t, s, http.MethodPost, "/api/admin/login", `{"key":"wrong"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d", rec.Code)
	}

	rec := doRequest(t, s, http.MethodPost, "/api/admin/login", `{"key":"admin-key"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Token == "" {
		t.Fatal("empty token")
	}

	auth := map[string]string{"Authorization": "Bearer " + body.Token}
	rec = doRequest(t, s, http.MethodGet, "/api/content/stats", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats content.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.AvailableScenarios != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/content/reload", "", auth); rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/scenarios/alpha_v1/validate", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	var report content.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !report.Valid {
		t.Fatalf("report = %+v", report)
	}
}

func TestScenarioDocumentsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/scenarios/alpha_v1/documents", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Documents []content.DocumentInfo `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Documents) != 1 || !body.Documents[0].Exists {
		t.Fatalf("documents = %+v", body.Documents)
	}
}
