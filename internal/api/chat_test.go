//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/skydesk/internal/agent"
	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
	"github.com/ashureev/skydesk/internal/store"
)

type fakeTurns struct {
	got    agent.TurnRequest
	result *agent.TurnResult
	err    error
}

func (f *fakeTurns) HandleTurn(_ context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeLookups struct {
	store.LookupRepository
	profiles map[string]*domain.UserProfile
	err      error
}

func (f *fakeLookups) GetUserProfile(_ context.Context, id string) (*domain.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[id], nil
}

func newTestRouter(t *testing.T, turns TurnRunner, lookups store.LookupRepository, cfg ChatHandlerConfig) http.Handler {
	t.Helper()
	registry, err := specialist.NewRegistry(domain.TriageSpecialist, specialist.Descriptor{
		ID: domain.TriageSpecialist, Label: "Triage Agent", Description: "Routes requests.",
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	r := chi.NewRouter()
	NewChatHandler(turns, registry, lookups, cfg).RegisterRoutes(r)
	return r
}

func postChat(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestHandleChatSuccess(t *testing.T) {
	turns := &fakeTurns{result: &agent.TurnResult{ConversationID: "conv-1", ActiveSpecialist: "faq"}}
	h := newTestRouter(t, turns, nil, ChatHandlerConfig{})

	rec := postChat(h, `{"conversation_id":"conv-1","message":"hi","registration_id":"REG-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if turns.got.IdentityToken != "REG-1" || turns.got.Message != "hi" {
		t.Fatalf("turn request = %+v", turns.got)
	}
	var got agent.TurnResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ActiveSpecialist != "faq" {
		t.Fatalf("response = %+v", got)
	}
}

func TestHandleChatMapsErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{agent.ErrEmptyMessage, http.StatusBadRequest, "message is required"},
		{agent.ErrTurnInProgress, http.StatusConflict, "a turn is already in progress for this conversation"},
		{context.Canceled, http.StatusRequestTimeout, "request cancelled"},
		{errors.Join(agent.ErrTurnFailed, errors.New("db password leaked")), http.StatusInternalServerError, agent.GenericErrorMessage},
	}
	for _, tt := range tests {
		h := newTestRouter(t, &fakeTurns{err: tt.err}, nil, ChatHandlerConfig{})
		rec := postChat(h, `{"message":"hi"}`)
		if rec.Code != tt.code {
			t.Fatalf("%v: status = %d, want %d", tt.err, rec.Code, tt.code)
		}
		if got := decodeError(t, rec); got != tt.msg {
			t.Fatalf("%v: error = %q, want %q", tt.err, got, tt.msg)
		}
	}
}

func TestHandleChatRejectsBadBodies(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, nil, ChatHandlerConfig{MaxBodySize: 32})

	if rec := postChat(h, `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d", rec.Code)
	}
	big := `{"message":"` + strings.Repeat("a", 100) + `"}`
	if rec := postChat(h, big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d", rec.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	turns := &fakeTurns{result: &agent.TurnResult{}}
	h := newTestRouter(t, turns, nil, ChatHandlerConfig{Limiter: limiter})

	if rec := postChat(h, `{"message":"one"}`); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := postChat(h, `{"message":"two"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
}

func TestGetUser(t *testing.T) {
	lookups := &fakeLookups{profiles: map[string]*domain.UserProfile{
		"REG-1": {RegistrationID: "REG-1", Details: map[string]any{"user_name": "Ava"}},
	}}
	h := newTestRouter(t, &fakeTurns{}, lookups, ChatHandlerConfig{})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/user/REG-1"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Ava") {
		t.Fatalf("known user: status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec := get("/user/REG-2"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", rec.Code)
	}
	if rec := get("/user/bad%20id"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d", rec.Code)
	}

	lookups.err = errors.New("disk on fire")
	if rec := get("/user/REG-1"); rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "fire") {
		t.Fatalf("store failure: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestListSpecialists(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, nil, ChatHandlerConfig{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/specialists", nil))

	var body struct {
		Specialists []specialist.Summary `json:"specialists"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Specialists) != 1 || body.Specialists[0].ID != domain.TriageSpecialist {
		t.Fatalf("specialists = %+v", body.Specialists)
	}
}

func TestReady(t *testing.T) {
	healthy := map[string]ReadinessCheck{"db": func(context.Context) error { return nil }}
	h := newTestRouter(t, &fakeTurns{}, nil, ChatHandlerConfig{Readiness: healthy})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	broken := map[string]ReadinessCheck{"reasoning": func(context.Context) error { return errors.New("down") }}
	h = newTestRouter(t, &fakeTurns{}, nil, ChatHandlerConfig{Readiness: broken})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys are independent")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window should have slid")
	}
	rl.evict()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests["b"]; ok {
		t.Fatal("expired key was not evicted")
	}
}
