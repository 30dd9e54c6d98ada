//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/catalog"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/api"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/db/memory"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/lock"
	"github.com/ping-media/ai-career-counselor-api/internal/usecase"
)

//
// -------------------- fakes --------------------
//

type scriptedAI struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []adapter.ChatRequest
}

func (a *scriptedAI) ListModels(ctx context.Context) ([]string, error) { return []string{"fake"}, nil }
func (a *scriptedAI) GetModelInfo(m string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: m}, nil
}
func (a *scriptedAI) CountTokens(ctx context.Context, m string, msgs []adapter.Message) (int, error) {
	return 0, nil
}
func (a *scriptedAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reqs = append(a.reqs, req)
	if a.err != nil {
		return "", adapter.Usage{}, a.err
	}
	return a.reply, adapter.Usage{}, nil
}

type denyLimiter struct{ calls int }

func (d *denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	d.calls++
	return d.calls <= limit, nil
}

//
// -------------------- helpers --------------------
//

type harness struct {
	router chi.Router
	repo   *memory.SessionRepo
	ai     *scriptedAI
	uc     usecase.CareerUseCase
	auth   *api.AuthManager
}

func newHarness(t *testing.T, secret string, opts api.RouterOptions) *harness {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	repo := memory.NewSessionRepo()
	ai := &scriptedAI{reply: "Great choice!"}
	uc := usecase.NewCareerUseCase(repo, lock.NewKeyedMutex(), ai, cat, usecase.CareerOptions{
		Model:            "gpt-4",
		Sampling:         usecase.Sampling{Temperature: 0.3, MaxTokens: 700},
		Stateless:        usecase.Sampling{Temperature: 0.7, MaxTokens: 500},
		Timeout:          time.Second,
		MaxMessageLength: 1000,
		DeleteSuperseded: true,
	}, nil)
	auth := api.NewAuthManager(secret, time.Hour)
	srv := api.NewServer(uc, auth, nil, false)
	return &harness{router: api.NewRouter(srv, opts), repo: repo, ai: ai, uc: uc, auth: auth}
}

func (h *harness) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body=%s)", err, rec.Body.String())
	}
	return v
}

type chatBody struct {
	Response  string        `json:"response"`
	SessionID string        `json:"sessionId"`
	State     model.State   `json:"state"`
	UserInfo  model.Profile `json:"userInfo"`
}

//
// -------------------- tests --------------------
//

func TestChat_FullIntakeOverHTTP(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})

	rec := h.do(t, http.MethodPost, "/api/chat", "", `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	first := decode[chatBody](t, rec)
	if first.Response != h.uc.Welcome() || first.SessionID == "" {
		t.Fatalf("expected welcome on a new session, got %+v", first)
	}
	if got := rec.Header().Get("X-Session-ID"); got != first.SessionID {
		t.Fatalf("X-Session-ID header %q does not match body %q", got, first.SessionID)
	}

	steps := []struct {
		msg   string
		state model.State
	}{
		{"Alex", model.StateAskStream},
		{"I study Commerce and love it", model.StateShowCategories},
		{"I want to be a Software Developer", model.StateInSimulation},
	}
	for _, st := range steps {
		rec = h.do(t, http.MethodPost, "/api/chat", first.SessionID, `{"message":"`+st.msg+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: want 200, got %d, body=%s", st.msg, rec.Code, rec.Body.String())
		}
		body := decode[chatBody](t, rec)
		if body.State != st.state || body.Response != "Great choice!" {
			t.Fatalf("%q: unexpected body %+v", st.msg, body)
		}
	}

	want := model.Profile{Name: "Alex", Stream: "Commerce", SelectedRole: "Software Developer"}
	s, err := h.repo.FindByID(context.Background(), first.SessionID)
	if err != nil || s.Profile != want {
		t.Fatalf("unexpected stored profile %+v (%v)", s, err)
	}
}

func TestChat_Validation(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing", `{}`, "Message is required"},
		{"not a string", `{"message":42}`, "Message must be a string"},
		{"blank", `{"message":"   "}`, "message"},
		{"too long", `{"message":"` + strings.Repeat("a", 1001) + `"}`, "1000"},
		{"bad json", `{"message":`, "Invalid JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/chat", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d, body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("body %s does not mention %q", rec.Body.String(), tc.want)
			}
		})
	}
	if h.repo.Len() != 0 {
		t.Fatalf("invalid input must not create sessions, got %d", h.repo.Len())
	}
}

func TestChat_ModelFailureMapsTo502(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	first := decode[chatBody](t, h.do(t, http.MethodPost, "/api/chat", "", `{"message":"hi"}`))

	h.ai.err = errors.New("upstream down")
	rec := h.do(t, http.MethodPost, "/api/chat", first.SessionID, `{"message":"Alex"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("want 502, got %d, body=%s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["details"] != "" {
		t.Fatalf("details must be hidden outside dev mode, got %q", body["details"])
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})

	t.Run("no session header", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/chat/history", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"messages":[],"userInfo":{},"sessionId":null}` {
			t.Fatalf("unexpected empty history %s", got)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/chat/history", "nope", "")
		if !strings.Contains(rec.Body.String(), `"sessionId":null`) {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("filters system and welcome", func(t *testing.T) {
		first := decode[chatBody](t, h.do(t, http.MethodPost, "/api/chat", "", `{"message":"hi"}`))
		h.do(t, http.MethodPost, "/api/chat", first.SessionID, `{"message":"Alex"}`)

		rec := h.do(t, http.MethodGet, "/api/chat/history", first.SessionID, "")
		body := decode[struct {
			Messages  []model.Message `json:"messages"`
			SessionID *string         `json:"sessionId"`
		}](t, rec)
		if body.SessionID == nil || *body.SessionID != first.SessionID {
			t.Fatalf("unexpected session id %v", body.SessionID)
		}
		var roles []model.Role
		for _, m := range body.Messages {
			roles = append(roles, m.Role)
		}
		want := []model.Role{model.RoleUser, model.RoleUser, model.RoleAssistant}
		if len(roles) != len(want) {
			t.Fatalf("want roles %v, got %v", want, roles)
		}
		for i := range want {
			if roles[i] != want[i] {
				t.Fatalf("want roles %v, got %v", want, roles)
			}
		}
	})
}

func TestUserInfo(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	sess := decode[chatBody](t, h.do(t, http.MethodPost, "/api/chat/new-session", "", ""))

	if rec := h.do(t, http.MethodPost, "/api/chat/user-info", "", `{"name":"A"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id: want 400, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPost, "/api/chat/user-info", "missing", `{"name":"A"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: want 404, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPost, "/api/chat/user-info", sess.SessionID, `{"stream":"Astrology"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown stream: want 400, got %d", rec.Code)
	}

	if rec := h.do(t, http.MethodPost, "/api/chat/user-info", sess.SessionID, `{"selectedRole":"Lawyer"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("role before stream: want 400, got %d", rec.Code)
	}

	rec := h.do(t, http.MethodPost, "/api/chat/user-info", sess.SessionID, `{"name":"  Priya ","stream":"commerce"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Success  bool          `json:"success"`
		UserInfo model.Profile `json:"userInfo"`
		State    model.State   `json:"state"`
	}](t, rec)
	if !body.Success || body.UserInfo.Name != "Priya" || body.UserInfo.Stream != "Commerce" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.State != model.StateShowCategories {
		t.Fatalf("state should reconcile forward, got %s", body.State)
	}

	// set-once
	rec = h.do(t, http.MethodPost, "/api/chat/user-info", sess.SessionID, `{"name":"Someone Else"}`)
	if got := decode[struct {
		UserInfo model.Profile `json:"userInfo"`
	}](t, rec); got.UserInfo.Name != "Priya" {
		t.Fatalf("name must not be overwritten, got %q", got.UserInfo.Name)
	}
}

func TestNewSession_SupersedesPrevious(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	old := decode[chatBody](t, h.do(t, http.MethodPost, "/api/chat", "", `{"message":"hi"}`))

	rec := h.do(t, http.MethodPost, "/api/chat/new-session", old.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decode[struct {
		Success   bool            `json:"success"`
		SessionID string          `json:"sessionId"`
		Messages  []model.Message `json:"messages"`
	}](t, rec)
	if !body.Success || body.SessionID == old.SessionID {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != model.RoleSystem {
		t.Fatalf("new session must hold only the system instruction, got %+v", body.Messages)
	}
	if rec.Header().Get("X-Session-ID") != body.SessionID {
		t.Fatal("X-Session-ID header not set")
	}
	if h.repo.Len() != 1 {
		t.Fatalf("superseded session should be deleted, store has %d", h.repo.Len())
	}
}

func TestFullHistory_RequiresAdminToken(t *testing.T) {
	h := newHarness(t, "s3cret", api.RouterOptions{})
	sess := decode[chatBody](t, h.do(t, http.MethodPost, "/api/chat", "", `{"message":"hi"}`))
	path := "/api/chat/history/" + sess.SessionID

	if rec := h.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", rec.Code)
	}

	tok, err := h.auth.Mint("ops")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with token, got %d, body=%s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Messages []model.Message `json:"messages"`
	}](t, rec)
	if len(body.Messages) != 4 || body.Messages[0].Role != model.RoleSystem {
		t.Fatalf("raw log should include the system instruction, got %d messages", len(body.Messages))
	}

	other := api.NewAuthManager("other", time.Hour)
	bad, _ := other.Mint("ops")
	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for a foreign token, got %d", rec.Code)
	}
}

func TestConversation_Stateless(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	rec := h.do(t, http.MethodPost, "/api/conversation", "",
		`{"message":"and then?","context":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Response string            `json:"response"`
		Context  []adapter.Message `json:"context"`
	}](t, rec)
	if body.Response != "Great choice!" || len(body.Context) != 4 {
		t.Fatalf("unexpected body %+v", body)
	}
	last := h.ai.reqs[len(h.ai.reqs)-1]
	if last.Temperature == nil || *last.Temperature != 0.7 || last.MaxTokens != 500 {
		t.Fatalf("stateless sampling not applied: %+v", last)
	}
	if h.repo.Len() != 0 {
		t.Fatal("stateless endpoint must not create sessions")
	}
}

func TestHealthRootAndMetrics(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{})
	if rec := h.do(t, http.MethodGet, "/api/health", "", ""); strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
	if rec := h.do(t, http.MethodGet, "/", "", ""); !strings.Contains(rec.Body.String(), "CareerVerse") {
		t.Fatalf("unexpected root body %s", rec.Body.String())
	}
	if rec := h.do(t, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics: want 200, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newHarness(t, "", api.RouterOptions{AllowedOrigins: []string{"http://localhost:5000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: want 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Expose-Headers") != "X-Session-ID" {
		t.Fatalf("session header must be exposed, got %v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}
}

func TestRateLimit(t *testing.T) {
	lim := &denyLimiter{}
	h := newHarness(t, "", api.RouterOptions{Limiter: lim, RatePerMinute: 2})
	for i := 0; i < 2; i++ {
		if rec := h.do(t, http.MethodGet, "/api/chat/history", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: want 200, got %d", i, rec.Code)
		}
	}
	rec := h.do(t, http.MethodGet, "/api/chat/history", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", rec.Code)
	}
	// health is outside the limited group
	if rec := h.do(t, http.MethodGet, "/api/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health must not be limited, got %d", rec.Code)
	}
}
