// ABOUTME: HTTP middleware that gates protected routes behind a live session
// ABOUTME: Reads client_name and session_token from the request parameters

package auth

import (
	"errors"
	"net/http"
)

// RequireSession wraps a handler so that only requests carrying a valid
// (client_name, session_token) pair get through. The parameters are read
// from the query string or form body, matching the handshake endpoints.
func RequireSession(mgr *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientName := r.FormValue("client_name")
			token := r.FormValue("session_token")
			if clientName == "" || token == "" {
				unauthorized(w, "client_name and session_token are required")
				return
			}

			ok, reason, err := mgr.VerifySession(r.Context(), clientName, token)
			if err != nil {
				if errors.Is(err, ErrDirectoryUnavailable) {
					http.Error(w, `{"success":false,"message":"client directory unavailable"}`, http.StatusServiceUnavailable)
					return
				}
				http.Error(w, `{"success":false,"message":"Unknown Error"}`, http.StatusInternalServerError)
				return
			}
			if !ok {
				unauthorized(w, reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + msg + `"}`))
}
