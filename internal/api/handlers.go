// Package api exposes the HTTP surface around the relay core: credential
// registration and login, chat history retrieval, health, and Prometheus
// metrics.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/parley/chat-relay/internal/auth"
	"github.com/parley/chat-relay/internal/chatlog"
	"github.com/parley/chat-relay/internal/metrics"
)

// ConnectionCounter reports the number of live WebSocket sessions; the
// connection registry satisfies it.
type ConnectionCounter interface {
	Count() int
}

// Handler bundles the dependencies of the HTTP API.
type Handler struct {
	auth      *auth.Service
	history   chatlog.Log
	conns     ConnectionCounter
	startedAt time.Time
}

// NewHandler creates the API handler.
func NewHandler(authService *auth.Service, history chatlog.Log, conns ConnectionCounter) *Handler {
	return &Handler{
		auth:      authService,
		history:   history,
		conns:     conns,
		startedAt: time.Now(),
	}
}

// Router builds the HTTP route table. The WebSocket endpoint is mounted by
// the caller so the API stays independent of the transport layer.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/messages", h.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRegister creates a new identity and returns a session token.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tok, err := h.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "username already taken"})
		return
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	case err != nil:
		log.Printf("api: register failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{Token: tok})
}

// handleLogin verifies credentials and returns a session token.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tok, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	case err != nil:
		log.Printf("api: login failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

// handleMessages returns the most recent persisted chat records, oldest
// first. The limit query parameter defaults to 50 and is capped server-side.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	recs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("api: history read failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleHealth responds with the server's health status as JSON, including
// the current connection count and uptime.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: h.conns.Count(),
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
