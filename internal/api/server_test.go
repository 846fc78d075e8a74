package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/auth"
	"github.com/koshedutech/binance-futures-bot/internal/bot"
)

type fakeController struct {
	status   bot.Status
	logs     []bot.LogEntry
	policies []bot.Policy
	starts   int
	stops    int
}

func (f *fakeController) Configure(p bot.Policy) { f.policies = append(f.policies, p) }
func (f *fakeController) Start()                { f.starts++ }
func (f *fakeController) Stop()                 { f.stops++ }
func (f *fakeController) GetStatus() bot.Status { return f.status }
func (f *fakeController) GetLogs() []bot.LogEntry {
	return f.logs
}

func newTestServer(t *testing.T, passwordHash string) (*Server, *fakeController, *auth.Manager) {
	t.Helper()
	controller := &fakeController{
		status: bot.Status{Running: true, BarCount: 60, CurrentPrice: 50000},
		logs:   []bot.LogEntry{{Type: "info", Message: "bot started"}},
	}
	authManager := auth.NewManager("test-secret", passwordHash, time.Hour)
	return NewServer(controller, authManager, nil, nil, zerolog.Nop()), controller, authManager
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	w := doRequest(s, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	w := doRequest(s, http.MethodGet, "/api/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var status bot.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !status.Running || status.BarCount != 60 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestConfigEndpointAppliesPolicy(t *testing.T) {
	s, controller, _ := newTestServer(t, "")

	body := `{"enabled":true,"min_score":70,"min_order_interval_sec":600,"account_percentage":5,"leverage":20,"margin_type":"CROSSED"}`
	w := doRequest(s, http.MethodPost, "/api/config", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(controller.policies) != 1 {
		t.Fatalf("expected 1 policy applied, got %d", len(controller.policies))
	}
	policy := controller.policies[0]
	if !policy.Enabled || policy.MinScore != 70 {
		t.Errorf("unexpected policy: %+v", policy)
	}
	if policy.MinOrderInterval != 10*time.Minute {
		t.Errorf("expected 10m interval, got %v", policy.MinOrderInterval)
	}
}

func TestConfigEndpointRejectsMissingEnabled(t *testing.T) {
	s, controller, _ := newTestServer(t, "")

	w := doRequest(s, http.MethodPost, "/api/config", `{"min_score":70}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(controller.policies) != 0 {
		t.Errorf("expected no policy applied, got %d", len(controller.policies))
	}
}

func TestStartStopEndpoints(t *testing.T) {
	s, controller, _ := newTestServer(t, "")

	doRequest(s, http.MethodPost, "/api/start", "", "")
	doRequest(s, http.MethodPost, "/api/stop", "", "")

	if controller.starts != 1 || controller.stops != 1 {
		t.Errorf("expected one start and one stop, got %d/%d", controller.starts, controller.stops)
	}
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	s, _, authManager := newTestServer(t, hash)

	w := doRequest(s, http.MethodGet, "/api/status", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/status", "", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", w.Code)
	}

	token, err := authManager.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	w = doRequest(s, http.MethodGet, "/api/status", "", token)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d", w.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	s, _, _ := newTestServer(t, hash)

	w := doRequest(s, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/auth/login", `{"password":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for correct password, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if resp["token"] == "" {
		t.Error("expected a session token")
	}
}

func TestLogsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	w := doRequest(s, http.MethodGet, "/api/logs", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bot started") {
		t.Errorf("expected log entry in response, got %s", w.Body.String())
	}
}
