// ABOUTME: In-memory stores for outstanding challenges and issued sessions
// ABOUTME: Plain maps with no internal locking; the Manager serializes access

package auth

// ChallengeStore holds outstanding handshake challenges keyed by
// (client name, challenge id). It performs no locking of its own: the Manager
// owns the store for the lifetime of the process and guards every access with
// its mutex, so that lookup-then-remove sequences stay atomic.
type ChallengeStore struct {
	records map[Key]*Challenge
}

// NewChallengeStore returns an empty challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{records: make(map[Key]*Challenge)}
}

// Put stores a challenge under the given key, replacing any existing record.
func (s *ChallengeStore) Put(k Key, c *Challenge) {
	s.records[k] = c
}

// Get returns the challenge stored under the key, if any.
func (s *ChallengeStore) Get(k Key) (*Challenge, bool) {
	c, ok := s.records[k]
	return c, ok
}

// Remove deletes the challenge stored under the key. Removing a missing key
// is a no-op.
func (s *ChallengeStore) Remove(k Key) {
	delete(s.records, k)
}

// Iterate calls fn for every stored challenge. fn may call Remove for the
// key it was handed.
func (s *ChallengeStore) Iterate(fn func(Key, *Challenge)) {
	for k, c := range s.records {
		fn(k, c)
	}
}

// Len returns the number of stored challenges.
func (s *ChallengeStore) Len() int {
	return len(s.records)
}

// SessionStore holds issued sessions keyed by (client name, session token).
// Like ChallengeStore it relies on the Manager for synchronization.
type SessionStore struct {
	records map[Key]*Session
}

// NewSessionStore returns an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{records: make(map[Key]*Session)}
}

// Put stores a session under the given key, replacing any existing record.
func (s *SessionStore) Put(k Key, sess *Session) {
	s.records[k] = sess
}

// Get returns the session stored under the key, if any.
func (s *SessionStore) Get(k Key) (*Session, bool) {
	sess, ok := s.records[k]
	return sess, ok
}

// Remove deletes the session stored under the key.
func (s *SessionStore) Remove(k Key) {
	delete(s.records, k)
}

// Iterate calls fn for every stored session. fn may call Remove for the key
// it was handed.
func (s *SessionStore) Iterate(fn func(Key, *Session)) {
	for k, sess := range s.records {
		fn(k, sess)
	}
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	return len(s.records)
}
