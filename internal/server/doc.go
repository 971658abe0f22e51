// Package server exposes the registry over HTTP. POST /auth and POST
// /auth_verify drive the handshake; the /registry/ routes require a live
// session, passed as client_name and session_token request parameters.
package server
