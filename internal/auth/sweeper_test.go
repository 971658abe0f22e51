// ABOUTME: Tests for the cleanup sweeper's interval gating, ensuring frequent
// ABOUTME: polls collapse into at most one cleanup pass per interval

package auth

import (
	"context"
	"testing"
	"time"
)

func TestSweep_GatedByInterval(t *testing.T) {
	mgr, clock := newTestManager(newTestDirectory())
	sweeper := NewSweeper(mgr, time.Minute)
	sweeper.now = clock.Now

	if _, err := mgr.StartHandshake(context.Background(), "alpha"); err != nil {
		t.Fatalf("StartHandshake() error = %v", err)
	}

	// First poll runs; the challenge is still live so nothing is removed.
	removed, ran := sweeper.Sweep()
	if !ran || removed != 0 {
		t.Errorf("first Sweep() = %d, %v; want 0, true", removed, ran)
	}

	// The challenge expires, but the sweeper's interval has not elapsed.
	clock.Advance(31 * time.Second)
	removed, ran = sweeper.Sweep()
	if ran || removed != 0 {
		t.Errorf("gated Sweep() = %d, %v; want 0, false", removed, ran)
	}

	// Past the interval, the next poll reclaims it.
	clock.Advance(30 * time.Second)
	removed, ran = sweeper.Sweep()
	if !ran || removed != 1 {
		t.Errorf("eligible Sweep() = %d, %v; want 1, true", removed, ran)
	}
}

func TestSweep_ReschedulesAfterEachRun(t *testing.T) {
	mgr, clock := newTestManager(newTestDirectory())
	sweeper := NewSweeper(mgr, time.Minute)
	sweeper.now = clock.Now

	if _, ran := sweeper.Sweep(); !ran {
		t.Fatal("first Sweep() should run")
	}
	clock.Advance(time.Minute)
	if _, ran := sweeper.Sweep(); !ran {
		t.Fatal("Sweep() at exactly the interval should run")
	}
	if _, ran := sweeper.Sweep(); ran {
		t.Error("immediate re-poll should be gated")
	}
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	mgr, _ := newTestManager(newTestDirectory())

	for _, interval := range []time.Duration{0, -time.Second} {
		sweeper := NewSweeper(mgr, interval)
		if sweeper.interval != DefaultCleanupInterval {
			t.Errorf("NewSweeper(%v).interval = %v, want %v", interval, sweeper.interval, DefaultCleanupInterval)
		}
	}
}
