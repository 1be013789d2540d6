package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parley/chat-relay/internal/auth"
	"github.com/parley/chat-relay/internal/chatlog"
	"github.com/parley/chat-relay/internal/token"
)

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

func newTestHandler(t *testing.T) (*Handler, *chatlog.MemoryLog) {
	t.Helper()
	tokens, err := token.NewService([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}
	history := chatlog.NewMemoryLog()
	h := NewHandler(auth.NewService(auth.NewMemoryRepository(), tokens), history, fixedCounter(2))
	return h, history
}

func doJSON(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestRegisterThenLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/register", `{"username":"bob","password":"hunter2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/login", `{"username":"bob","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterConflict(t *testing.T) {
	h, _ := newTestHandler(t)

	doJSON(t, h, http.MethodPost, "/api/register", `{"username":"bob","password":"a"}`)
	rec := doJSON(t, h, http.MethodPost, "/api/register", `{"username":"bob","password":"b"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestLoginUnauthorized(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/login", `{"username":"ghost","password":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterBadBody(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/register", `{nope`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMessagesReturnsHistoryOldestFirst(t *testing.T) {
	h, history := newTestHandler(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		err := history.Append(context.Background(), chatlog.Record{
			Username:  "bob",
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/messages?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var recs []chatlog.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Text != "two" || recs[1].Text != "three" {
		t.Errorf("expected the 2 most recent records oldest-first, got %+v", recs)
	}
}

func TestMessagesRejectsBadLimit(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, q := range []string{"?limit=abc", "?limit=-1"} {
		rec := doJSON(t, h, http.MethodGet, "/api/messages"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Connections != 2 {
		t.Errorf("expected 2 connections, got %d", resp.Connections)
	}
}
