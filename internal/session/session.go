package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the engine-visible conversation state driving UI feedback.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
	StateThinking  State = "thinking"
	StateSleep     State = "sleep"
)

// Session tracks one live connection to the remote speech model.
// At most one Session is live per engine instance.
type Session struct {
	mu sync.Mutex

	id                string
	startedAt         time.Time
	lastActivityAt    time.Time
	interruptionCount int
}

// Snapshot is an immutable copy of session accounting for status surfaces.
type Snapshot struct {
	ID                string    `json:"session_id"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	InterruptionCount int       `json:"interruption_count"`
}

func New() *Session {
	now := time.Now().UTC()
	return &Session{
		id:             uuid.NewString(),
		startedAt:      now,
		lastActivityAt: now,
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = time.Now().UTC()
}

// Interrupt records one barge-in on the session.
func (s *Session) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptionCount++
	s.lastActivityAt = time.Now().UTC()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:                s.id,
		StartedAt:         s.startedAt,
		LastActivityAt:    s.lastActivityAt,
		InterruptionCount: s.interruptionCount,
	}
}
