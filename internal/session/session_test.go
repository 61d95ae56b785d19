package session

import (
	"testing"
	"time"
)

func TestNewSessionHasID(t *testing.T) {
	s := New()
	if s.ID() == "" {
		t.Fatalf("session ID should not be empty")
	}
	snap := s.Snapshot()
	if snap.StartedAt.IsZero() || snap.LastActivityAt.IsZero() {
		t.Fatalf("timestamps should be set: %+v", snap)
	}
	if snap.InterruptionCount != 0 {
		t.Fatalf("InterruptionCount = %d, want 0", snap.InterruptionCount)
	}
}

func TestInterruptIncrementsAndTouches(t *testing.T) {
	s := New()
	before := s.Snapshot().LastActivityAt
	time.Sleep(2 * time.Millisecond)

	s.Interrupt()
	s.Interrupt()

	snap := s.Snapshot()
	if snap.InterruptionCount != 2 {
		t.Fatalf("InterruptionCount = %d, want 2", snap.InterruptionCount)
	}
	if !snap.LastActivityAt.After(before) {
		t.Fatalf("LastActivityAt should advance after interrupt")
	}
}

func TestStateConstants(t *testing.T) {
	states := []State{StateIdle, StateListening, StateSpeaking, StateThinking, StateSleep}
	seen := map[State]bool{}
	for _, st := range states {
		if st == "" {
			t.Fatalf("empty state constant")
		}
		if seen[st] {
			t.Fatalf("duplicate state constant %q", st)
		}
		seen[st] = true
	}
}
