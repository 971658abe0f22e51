// ABOUTME: Unit tests for the session manager's handshake protocol and
// ABOUTME: session lifecycle, driven by a fake directory and a fake clock

package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orbitcast/registry/internal/store"
)

// fakeDirectory is an in-memory ClientDirectory for tests.
type fakeDirectory struct {
	clients map[string]*store.Client
	keys    map[string]map[string][]byte
	err     error
}

func (d *fakeDirectory) FindClient(_ context.Context, name string, activeOnly bool) (*store.Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	c, ok := d.clients[name]
	if !ok || (activeOnly && !c.Active) {
		return nil, nil
	}
	return c, nil
}

func (d *fakeDirectory) ClientKeys(_ context.Context, name string) (map[string][]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.keys[name], nil
}

// fakeClock provides a controllable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestDirectory() *fakeDirectory {
	return &fakeDirectory{
		clients: map[string]*store.Client{
			"alpha":   {Name: "alpha", Active: true},
			"dormant": {Name: "dormant", Active: false},
			"keyless": {Name: "keyless", Active: true},
		},
		keys: map[string]map[string][]byte{
			"alpha":   {CipherAESCBC: testKey},
			"dormant": {CipherAESCBC: testKey},
		},
	}
}

func newTestManager(dir ClientDirectory) (*Manager, *fakeClock) {
	clock := newFakeClock()
	mgr := NewManager(dir, NewChallengeStore(), NewSessionStore(), ManagerConfig{})
	mgr.now = clock.Now
	return mgr, clock
}

// answer computes the ciphertext a legitimate client would submit.
func answer(t *testing.T, challenge *ChallengePublic, key []byte) []byte {
	t.Helper()
	iv, err := hex.DecodeString(challenge.CipherIV)
	if err != nil {
		t.Fatalf("decoding challenge iv: %v", err)
	}
	ct, err := Encrypt([]byte(challenge.Text), key, iv)
	if err != nil {
		t.Fatalf("encrypting challenge text: %v", err)
	}
	return ct
}

func TestStartHandshake(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	challenge, err := mgr.StartHandshake(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	if challenge.ID == "" {
		t.Error("challenge id should not be empty")
	}
	if len(challenge.Text) != 64 {
		t.Errorf("challenge text length = %d, want 64", len(challenge.Text))
	}
	if challenge.Cipher != CipherAESCBC {
		t.Errorf("challenge cipher = %q, want %q", challenge.Cipher, CipherAESCBC)
	}
	if challenge.Duration != 30 {
		t.Errorf("challenge duration = %d, want 30", challenge.Duration)
	}
	if iv, err := hex.DecodeString(challenge.CipherIV); err != nil || len(iv) != 16 {
		t.Errorf("cipher_iv = %q, want 16 hex-encoded bytes", challenge.CipherIV)
	}
}

func TestStartHandshake_FreshIVPerChallenge(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	a, err := mgr.StartHandshake(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	b, err := mgr.StartHandshake(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	if a.CipherIV == b.CipherIV {
		t.Error("each challenge should carry a fresh IV")
	}
	if a.ID == b.ID {
		t.Error("each challenge should carry a fresh id")
	}
}

func TestStartHandshake_ClientChecks(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	for _, name := range []string{"ghost", "dormant", ""} {
		if _, err := mgr.StartHandshake(context.Background(), name); !errors.Is(err, ErrNoSuchClient) {
			t.Errorf("StartHandshake(%q) error = %v, want ErrNoSuchClient", name, err)
		}
	}
}

func TestStartHandshake_DirectoryDown(t *testing.T) {
	dir := newTestDirectory()
	dir.err = errors.New("connection refused")
	mgr, _ := newTestManager(dir)

	if _, err := mgr.StartHandshake(context.Background(), "alpha"); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("StartHandshake() error = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestCompleteHandshake_Malformed(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	tests := []struct {
		name string
		resp HandshakeResponse
	}{
		{"missing id", HandshakeResponse{EncryptedText: []byte("x")}},
		{"missing encrypted_text", HandshakeResponse{ID: "c1"}},
		{"empty", HandshakeResponse{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := mgr.CompleteHandshake(context.Background(), "alpha", tt.resp)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("CompleteHandshake() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestCompleteHandshake_NoSuchChallenge(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	_, _, err := mgr.CompleteHandshake(context.Background(), "alpha",
		HandshakeResponse{ID: "never-issued", EncryptedText: []byte("x")})
	if !errors.Is(err, ErrNoSuchChallenge) {
		t.Errorf("CompleteHandshake() error = %v, want ErrNoSuchChallenge", err)
	}
}

func TestCompleteHandshake_SucceedsExactlyOnce(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	resp := HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)}

	token, duration, err := mgr.CompleteHandshake(ctx, "alpha", resp)
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}
	if token == "" {
		t.Error("session token should not be empty")
	}
	if duration != time.Hour {
		t.Errorf("session duration = %v, want default %v", duration, time.Hour)
	}

	// The challenge is single-use: replaying the same valid response must
	// fail because the first completion consumed it.
	_, _, err = mgr.CompleteHandshake(ctx, "alpha", resp)
	if !errors.Is(err, ErrNoSuchChallenge) {
		t.Errorf("second CompleteHandshake() error = %v, want ErrNoSuchChallenge", err)
	}
}

func TestCompleteHandshake_RejectedResponseKeepsChallenge(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	wrong := answer(t, challenge, testKey)
	wrong[0] ^= 0xff
	_, _, err = mgr.CompleteHandshake(ctx, "alpha",
		HandshakeResponse{ID: challenge.ID, EncryptedText: wrong})
	if !errors.Is(err, ErrResponseRejected) {
		t.Fatalf("CompleteHandshake() error = %v, want ErrResponseRejected", err)
	}

	// A rejected attempt does not consume the challenge; the correct
	// answer still completes before expiry.
	_, _, err = mgr.CompleteHandshake(ctx, "alpha",
		HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)})
	if err != nil {
		t.Errorf("retry after rejection failed: %v", err)
	}
}

func TestCompleteHandshake_Expired(t *testing.T) {
	mgr, clock := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	resp := HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)}

	clock.Advance(31 * time.Second)

	_, _, err = mgr.CompleteHandshake(ctx, "alpha", resp)
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("CompleteHandshake() error = %v, want ErrChallengeExpired", err)
	}

	// Detection removes the expired challenge as a side effect.
	_, _, err = mgr.CompleteHandshake(ctx, "alpha", resp)
	if !errors.Is(err, ErrNoSuchChallenge) {
		t.Errorf("CompleteHandshake() after removal error = %v, want ErrNoSuchChallenge", err)
	}
}

func TestCompleteHandshake_NoKeyForCipher(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "keyless")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	_, _, err = mgr.CompleteHandshake(ctx, "keyless",
		HandshakeResponse{ID: challenge.ID, EncryptedText: []byte("whatever")})
	if !errors.Is(err, ErrNoKeyForCipher) {
		t.Errorf("CompleteHandshake() error = %v, want ErrNoKeyForCipher", err)
	}
}

func TestCompleteHandshake_ClientDeactivatedMidHandshake(t *testing.T) {
	dir := newTestDirectory()
	mgr, _ := newTestManager(dir)
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	// Deactivation between the two phases must not invalidate the
	// originally issued challenge.
	dir.clients["alpha"].Active = false
	defer func() { dir.clients["alpha"].Active = true }()

	_, _, err = mgr.CompleteHandshake(ctx, "alpha",
		HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)})
	if err != nil {
		t.Errorf("CompleteHandshake() for deactivated client error = %v", err)
	}
}

func TestSessionDurationClamp(t *testing.T) {
	tests := []struct {
		name      string
		requested time.Duration
		want      time.Duration
	}{
		{"absent requests default", 0, time.Hour},
		{"short request honored", 10 * time.Minute, 10 * time.Minute},
		{"exactly max", 24 * time.Hour, 24 * time.Hour},
		{"above max clamped", 25 * time.Hour, 24 * time.Hour},
		{"far above max clamped", 1000 * time.Hour, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, _ := newTestManager(newTestDirectory())
			ctx := context.Background()

			challenge, err := mgr.StartHandshake(ctx, "alpha")
			if err != nil {
				t.Fatalf("StartHandshake() error = %v", err)
			}
			_, duration, err := mgr.CompleteHandshake(ctx, "alpha", HandshakeResponse{
				ID:            challenge.ID,
				EncryptedText: answer(t, challenge, testKey),
				Duration:      tt.requested,
			})
			if err != nil {
				t.Fatalf("CompleteHandshake() error = %v", err)
			}
			if duration != tt.want {
				t.Errorf("session duration = %v, want %v", duration, tt.want)
			}
		})
	}
}

func TestVerifySession(t *testing.T) {
	mgr, clock := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	token, _, err := mgr.CompleteHandshake(ctx, "alpha", HandshakeResponse{
		ID:            challenge.ID,
		EncryptedText: answer(t, challenge, testKey),
		Duration:      time.Hour,
	})
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}

	ok, reason, err := mgr.VerifySession(ctx, "alpha", token)
	if err != nil || !ok || reason != "ok" {
		t.Errorf("VerifySession() = %v, %q, %v; want true, ok, nil", ok, reason, err)
	}

	ok, reason, err = mgr.VerifySession(ctx, "alpha", "bogus-token")
	if err != nil || ok || reason != "no session found" {
		t.Errorf("VerifySession(bogus) = %v, %q, %v", ok, reason, err)
	}

	ok, reason, err = mgr.VerifySession(ctx, "ghost", token)
	if err != nil || ok || reason != "no such client" {
		t.Errorf("VerifySession(ghost) = %v, %q, %v", ok, reason, err)
	}

	clock.Advance(time.Hour + time.Second)
	ok, reason, err = mgr.VerifySession(ctx, "alpha", token)
	if err != nil || ok || reason != "session timed out" {
		t.Errorf("VerifySession(expired) = %v, %q, %v", ok, reason, err)
	}
}

func TestVerifySession_TokenScopedToClient(t *testing.T) {
	dir := newTestDirectory()
	dir.clients["beta"] = &store.Client{Name: "beta", Active: true}
	dir.keys["beta"] = map[string][]byte{CipherAESCBC: testKey}
	mgr, _ := newTestManager(dir)
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	token, _, err := mgr.CompleteHandshake(ctx, "alpha",
		HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)})
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}

	ok, reason, err := mgr.VerifySession(ctx, "beta", token)
	if err != nil || ok || reason != "no session found" {
		t.Errorf("another client's token should not verify: %v, %q, %v", ok, reason, err)
	}
}

func TestInvalidateSession(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())
	ctx := context.Background()

	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	token, _, err := mgr.CompleteHandshake(ctx, "alpha",
		HandshakeResponse{ID: challenge.ID, EncryptedText: answer(t, challenge, testKey)})
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}

	mgr.InvalidateSession("alpha", token)

	ok, reason, err := mgr.VerifySession(ctx, "alpha", token)
	if err != nil || ok || reason != "no session found" {
		t.Errorf("VerifySession() after invalidation = %v, %q, %v", ok, reason, err)
	}
}

func TestCleanup(t *testing.T) {
	mgr, clock := newTestManager(newTestDirectory())
	ctx := context.Background()

	// One challenge left to expire, one session created from another.
	if _, err := mgr.StartHandshake(ctx, "alpha"); err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	challenge, err := mgr.StartHandshake(ctx, "alpha")
	if err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}
	token, _, err := mgr.CompleteHandshake(ctx, "alpha", HandshakeResponse{
		ID:            challenge.ID,
		EncryptedText: answer(t, challenge, testKey),
		Duration:      time.Minute,
	})
	if err != nil {
		t.Fatalf("CompleteHandshake() error = %v", err)
	}

	// Nothing has expired yet.
	if removed := mgr.Cleanup(); removed != 0 {
		t.Errorf("Cleanup() before expiry = %d, want 0", removed)
	}

	// Past the challenge window but inside the session's minute.
	clock.Advance(31 * time.Second)
	if removed := mgr.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() after challenge expiry = %d, want 1", removed)
	}
	if ok, _, _ := mgr.VerifySession(ctx, "alpha", token); !ok {
		t.Error("live session should survive cleanup")
	}

	// Past the session window too.
	clock.Advance(time.Minute)
	if removed := mgr.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() after session expiry = %d, want 1", removed)
	}

	// Idempotent with no further expirations.
	if removed := mgr.Cleanup(); removed != 0 {
		t.Errorf("second Cleanup() = %d, want 0", removed)
	}
}
