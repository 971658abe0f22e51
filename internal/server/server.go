// ABOUTME: HTTP surface of the registry: auth handshake and content routes
// ABOUTME: Plain net/http mux with the session middleware on protected routes

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/orbitcast/registry/internal/auth"
	"github.com/orbitcast/registry/internal/content"
)

// Server wires the session manager and content manager into an http.Handler.
type Server struct {
	sessions *auth.Manager
	catalog  *content.Manager
	logger   *slog.Logger
}

// New creates the registry HTTP server.
func New(sessions *auth.Manager, catalog *content.Manager) *Server {
	return &Server{
		sessions: sessions,
		catalog:  catalog,
		logger:   slog.Default().With("component", "server"),
	}
}

// Handler returns the fully routed handler. Content routes require a live
// session; the handshake endpoints and health check do not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	requireSession := auth.RequireSession(s.sessions)

	mux.HandleFunc("/auth", s.handleStartHandshake)
	mux.HandleFunc("/auth_verify", s.handleVerifyResponse)
	mux.Handle("/registry/", requireSession(http.HandlerFunc(s.handleContent)))
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// failure is the error envelope every endpoint uses.
type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failure{Success: false, Message: msg})
}
