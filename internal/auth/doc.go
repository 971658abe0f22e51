// Package auth implements the registry's client authentication core: a
// symmetric-key challenge-response handshake and the time-bounded sessions
// issued on success.
//
// # Handshake protocol
//
// A client proves possession of its registered AES key in two phases:
//
//  1. StartHandshake issues a challenge: a random hex text, a cipher name,
//     a fresh random IV, and a short validity window (30s by default).
//  2. CompleteHandshake checks the client's AES-CBC encryption of the
//     challenge text against the server's own. On a match the challenge is
//     consumed (single-use) and a session token is issued, with a duration
//     clamped to the configured maximum. On a mismatch the challenge stays
//     usable until it expires, so the challenge lifetime bounds retries.
//
// Sessions are verified with VerifySession and reclaimed, together with
// expired challenges, by the Sweeper calling Manager.Cleanup on an interval.
//
// All handshake and session state lives in process memory. Sessions are not
// visible across registryd processes; running more than one process behind a
// load balancer requires sticky routing.
package auth
