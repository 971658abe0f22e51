// ABOUTME: Session manager implementing the challenge-response handshake
// ABOUTME: protocol, session lifecycle, and expired-state cleanup

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Protocol errors. All of these are caller-reportable and none are fatal to
// the process; the HTTP layer maps them to user-facing messages.
var (
	ErrNoSuchClient         = errors.New("no such client")
	ErrMalformedResponse    = errors.New("response must contain id and encrypted_text")
	ErrNoSuchChallenge      = errors.New("no matching challenge found for response")
	ErrChallengeExpired     = errors.New("challenge timed out")
	ErrNoKeyForCipher       = errors.New("client has no key for cipher")
	ErrResponseRejected     = errors.New("challenge response rejected")
	ErrDirectoryUnavailable = errors.New("client directory unavailable")
)

// Defaults for the four auth tunables.
const (
	DefaultChallengeDuration  = 30 * time.Second
	DefaultSessionDuration    = time.Hour
	DefaultSessionMaxDuration = 24 * time.Hour
	DefaultCleanupInterval    = time.Minute
)

// ManagerConfig carries the protocol tunables. Zero values fall back to the
// package defaults.
type ManagerConfig struct {
	ChallengeDuration      time.Duration
	DefaultSessionDuration time.Duration
	MaxSessionDuration     time.Duration
}

// HandshakeResponse is a client's answer to a challenge. Duration is the
// requested session duration; zero means the server default.
type HandshakeResponse struct {
	ID            string
	EncryptedText []byte
	Duration      time.Duration
}

// Manager orchestrates the handshake protocol and session lifecycle. It owns
// the challenge and session stores exclusively: all reads and writes go
// through its mutex, which also guarantees that the read-verify-remove
// sequence in CompleteHandshake is atomic. Two concurrent submissions of the
// same valid response cannot both succeed.
//
// State is process-local memory. A session created by one registryd process
// is invisible to every other process.
type Manager struct {
	mu         sync.Mutex
	directory  ClientDirectory
	challenges *ChallengeStore
	sessions   *SessionStore

	challengeDuration      time.Duration
	defaultSessionDuration time.Duration
	maxSessionDuration     time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager around the given directory and stores.
func NewManager(directory ClientDirectory, challenges *ChallengeStore, sessions *SessionStore, cfg ManagerConfig) *Manager {
	if cfg.ChallengeDuration <= 0 {
		cfg.ChallengeDuration = DefaultChallengeDuration
	}
	if cfg.DefaultSessionDuration <= 0 {
		cfg.DefaultSessionDuration = DefaultSessionDuration
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = DefaultSessionMaxDuration
	}
	return &Manager{
		directory:              directory,
		challenges:             challenges,
		sessions:               sessions,
		challengeDuration:      cfg.ChallengeDuration,
		defaultSessionDuration: cfg.DefaultSessionDuration,
		maxSessionDuration:     cfg.MaxSessionDuration,
		logger:                 slog.Default().With("component", "auth"),
		now:                    time.Now,
	}
}

// StartHandshake creates a challenge for the named client and returns its
// disclosure-safe view. The client must exist and be active.
func (m *Manager) StartHandshake(ctx context.Context, clientName string) (*ChallengePublic, error) {
	client, err := m.directory.FindClient(ctx, clientName, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchClient, clientName)
	}

	text, err := NewChallengeText()
	if err != nil {
		return nil, err
	}
	iv, err := MakeIV()
	if err != nil {
		return nil, err
	}

	ch := &Challenge{
		ID:       uuid.NewString(),
		Text:     text,
		Cipher:   CipherAESCBC,
		IV:       iv,
		Duration: m.challengeDuration,
		Created:  m.now(),
		Client:   client.Name,
	}

	m.mu.Lock()
	m.challenges.Put(Key{Client: client.Name, ID: ch.ID}, ch)
	m.mu.Unlock()

	m.logger.Debug("handshake started", "client", client.Name, "challenge_id", ch.ID)
	return ch.Public(), nil
}

// CompleteHandshake verifies a challenge response and, on success, consumes
// the challenge and issues a session. A failed verification leaves the
// challenge in place so the client may retry until it expires; the short
// challenge lifetime bounds the number of attempts.
func (m *Manager) CompleteHandshake(ctx context.Context, clientName string, resp HandshakeResponse) (string, time.Duration, error) {
	if resp.ID == "" || len(resp.EncryptedText) == 0 {
		return "", 0, ErrMalformedResponse
	}

	// No active filter here: a client deactivated after the challenge was
	// issued may still complete it.
	client, err := m.directory.FindClient(ctx, clientName, false)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if client == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrNoSuchClient, clientName)
	}

	key := Key{Client: client.Name, ID: resp.ID}

	// First pass: learn which cipher the challenge wants, so the key lookup
	// (which may hit the database) happens outside the critical section.
	m.mu.Lock()
	ch, ok := m.challenges.Get(key)
	if !ok {
		m.mu.Unlock()
		return "", 0, ErrNoSuchChallenge
	}
	if !ch.ValidAt(m.now()) {
		m.challenges.Remove(key)
		m.mu.Unlock()
		return "", 0, ErrChallengeExpired
	}
	cipherName := ch.Cipher
	m.mu.Unlock()

	keys, err := m.directory.ClientKeys(ctx, client.Name)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	clientKey, ok := keys[cipherName]
	if !ok || len(clientKey) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrNoKeyForCipher, cipherName)
	}

	// Second pass holds the lock across re-lookup, verification, removal,
	// and session creation. The challenge may have been consumed or swept
	// while the key lookup ran, so it is fetched again.
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok = m.challenges.Get(key)
	if !ok {
		return "", 0, ErrNoSuchChallenge
	}
	if !ch.ValidAt(m.now()) {
		m.challenges.Remove(key)
		return "", 0, ErrChallengeExpired
	}

	want, err := Encrypt([]byte(ch.Text), clientKey, ch.IV)
	if err != nil {
		// Malformed key material in the directory is an internal fault,
		// not an ordinary authentication failure.
		m.logger.Error("challenge verification failed on key material", "client", client.Name, "cipher", cipherName, "error", err)
		return "", 0, err
	}
	if !EqualCiphertext(resp.EncryptedText, want) {
		return "", 0, ErrResponseRejected
	}

	duration := m.clampDuration(resp.Duration)
	sess := &Session{
		Token:    uuid.NewString(),
		Duration: duration,
		Created:  m.now(),
		Client:   client.Name,
	}
	m.challenges.Remove(key)
	m.sessions.Put(Key{Client: client.Name, ID: sess.Token}, sess)

	m.logger.Info("handshake completed", "client", client.Name, "session_duration", duration)
	return sess.Token, duration, nil
}

// VerifySession reports whether the token names a live session for the
// client. The boolean is the verdict and the string a caller-facing reason.
// The returned error is non-nil only when the client directory itself failed.
// Expired sessions are left in the store for the sweeper; the read path does
// not mutate shared state.
func (m *Manager) VerifySession(ctx context.Context, clientName, token string) (bool, string, error) {
	client, err := m.directory.FindClient(ctx, clientName, false)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if client == nil {
		return false, "no such client", nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions.Get(Key{Client: client.Name, ID: token})
	if !ok {
		return false, "no session found", nil
	}
	if !sess.ValidAt(m.now()) {
		return false, "session timed out", nil
	}
	return true, "ok", nil
}

// InvalidateSession removes the session immediately, regardless of its
// remaining lifetime.
func (m *Manager) InvalidateSession(clientName, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(Key{Client: clientName, ID: token})
}

// Cleanup removes every challenge and session outside its validity window
// and returns the number of records removed. It is idempotent: a second call
// with no elapsed time removes nothing.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	m.challenges.Iterate(func(k Key, ch *Challenge) {
		if !ch.ValidAt(now) {
			m.challenges.Remove(k)
			removed++
		}
	})
	m.sessions.Iterate(func(k Key, sess *Session) {
		if !sess.ValidAt(now) {
			m.sessions.Remove(k)
			removed++
		}
	})
	return removed
}

func (m *Manager) clampDuration(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = m.defaultSessionDuration
	}
	return min(requested, m.maxSessionDuration)
}
