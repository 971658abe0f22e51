// ABOUTME: Periodic sweeper that reclaims expired challenges and sessions
// ABOUTME: Rate-limited by a next-eligible-run timestamp, never on the request path

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper drives Manager.Cleanup on a schedule. The host loop may poll it as
// often as it likes; real work happens at most once per interval, enforced by
// the next-eligible-run timestamp.
type Sweeper struct {
	mu       sync.Mutex
	mgr      *Manager
	interval time.Duration
	next     time.Time
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper that cleans up via mgr at most once per
// interval. A non-positive interval falls back to DefaultCleanupInterval.
func NewSweeper(mgr *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Sweeper{
		mgr:      mgr,
		interval: interval,
		logger:   slog.Default().With("component", "sweeper"),
		now:      time.Now,
	}
}

// Sweep runs a cleanup pass if the interval has elapsed since the last one.
// It returns the number of records removed and whether a pass actually ran.
func (s *Sweeper) Sweep() (int, bool) {
	s.mu.Lock()
	now := s.now()
	if now.Before(s.next) {
		s.mu.Unlock()
		return 0, false
	}
	s.next = now.Add(s.interval)
	s.mu.Unlock()

	removed := s.mgr.Cleanup()
	if removed > 0 {
		s.logger.Info("cleaned up timed out sessions and handshakes", "removed", removed)
	}
	return removed, true
}

// Run polls Sweep every pollInterval until ctx is cancelled. The poll
// interval may be much shorter than the cleanup interval; Sweep's own gating
// decides when work happens.
func (s *Sweeper) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
