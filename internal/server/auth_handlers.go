// ABOUTME: Handshake endpoints: POST /auth starts a challenge, POST
// ABOUTME: /auth_verify completes it and returns a session token

package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/orbitcast/registry/internal/auth"
)

// challengeEnvelope is the success body of POST /auth.
type challengeEnvelope struct {
	Success   bool                  `json:"success"`
	Challenge *auth.ChallengePublic `json:"challenge"`
}

// sessionEnvelope is the success body of POST /auth_verify.
type sessionEnvelope struct {
	Success bool        `json:"success"`
	Session sessionBody `json:"session"`
}

type sessionBody struct {
	Token    string `json:"token"`
	Duration int64  `json:"duration"`
}

func (s *Server) handleStartHandshake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clientName := r.FormValue("client_name")
	challenge, err := s.sessions.StartHandshake(r.Context(), clientName)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, challengeEnvelope{Success: true, Challenge: challenge})
}

func (s *Server) handleVerifyResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clientName := r.FormValue("client_name")
	resp := auth.HandshakeResponse{ID: r.FormValue("id")}

	if encText := r.FormValue("encrypted_text"); encText != "" {
		decoded, err := hex.DecodeString(encText)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "encrypted_text must be hex encoded")
			return
		}
		resp.EncryptedText = decoded
	}
	if durStr := r.FormValue("duration"); durStr != "" {
		secs, err := strconv.ParseInt(durStr, 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "duration must be an integer number of seconds")
			return
		}
		resp.Duration = time.Duration(secs) * time.Second
	}

	token, duration, err := s.sessions.CompleteHandshake(r.Context(), clientName, resp)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionEnvelope{
		Success: true,
		Session: sessionBody{Token: token, Duration: int64(duration / time.Second)},
	})
}

// writeAuthError maps protocol errors to status codes and user-facing
// messages. Unexpected errors are logged distinctly from ordinary
// authentication failures and reported generically.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMalformedResponse):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNoSuchClient),
		errors.Is(err, auth.ErrNoSuchChallenge),
		errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrNoKeyForCipher),
		errors.Is(err, auth.ErrResponseRejected):
		writeFailure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrDirectoryUnavailable):
		s.logger.Error("client directory unavailable", "error", err)
		writeFailure(w, http.StatusServiceUnavailable, "client directory unavailable")
	default:
		s.logger.Error("handshake failed with unknown error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Unknown Error")
	}
}
