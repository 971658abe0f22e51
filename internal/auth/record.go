// ABOUTME: Challenge and Session records with time-bounded validity windows
// ABOUTME: Records are addressed by (client name, id-or-token) composite keys

package auth

import (
	"encoding/hex"
	"time"
)

// CipherAESCBC identifies the cipher used for handshake verification.
const CipherAESCBC = "AES_CBC"

// Key addresses a challenge or session record. Client is the owning client
// name, ID is the challenge id or session token.
type Key struct {
	Client string
	ID     string
}

// Challenge is an outstanding handshake awaiting a response. It is single-use:
// a successful completion consumes it, and the sweeper reclaims it once the
// validity window has passed.
type Challenge struct {
	ID       string
	Text     string // hex string, encrypted as-is by the client
	Cipher   string
	IV       []byte
	Duration time.Duration
	Created  time.Time
	Client   string
}

// ValidAt reports whether the challenge is inside its validity window at t.
// The window is [Created, Created+Duration], inclusive at both ends. Records
// without timing fields are always valid; only test fixtures construct those.
func (c *Challenge) ValidAt(t time.Time) bool {
	return validAt(c.Created, c.Duration, t)
}

// Public returns the challenge fields that are safe to disclose to the
// client. The owning client's key never appears here.
func (c *Challenge) Public() *ChallengePublic {
	return &ChallengePublic{
		ID:       c.ID,
		Text:     c.Text,
		Duration: int64(c.Duration / time.Second),
		Cipher:   c.Cipher,
		CipherIV: hex.EncodeToString(c.IV),
	}
}

// ChallengePublic is the disclosure-safe view of a challenge returned from
// StartHandshake. Field names are part of the wire contract.
type ChallengePublic struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Duration int64  `json:"duration"`
	Cipher   string `json:"cipher"`
	CipherIV string `json:"cipher_iv"`
}

// Session is an issued session token with a bounded lifetime.
type Session struct {
	Token    string
	Duration time.Duration
	Created  time.Time
	Client   string
}

// ValidAt reports whether the session is inside its validity window at t,
// with the same inclusive-bounds semantics as Challenge.ValidAt.
func (s *Session) ValidAt(t time.Time) bool {
	return validAt(s.Created, s.Duration, t)
}

func validAt(created time.Time, duration time.Duration, t time.Time) bool {
	if created.IsZero() || duration <= 0 {
		return true
	}
	elapsed := t.Sub(created)
	return elapsed >= 0 && elapsed <= duration
}
