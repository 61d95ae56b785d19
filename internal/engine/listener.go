package engine

import (
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
	"github.com/danghoangsqtt-sys/nana-app/internal/session"
)

// ChatMessage is one finalized conversation turn, owned by the caller.
type ChatMessage struct {
	Role      protocol.Direction `json:"role"`
	Text      string             `json:"text"`
	Timestamp time.Time          `json:"timestamp"`
}

// Listener receives engine events. Each engine instance has exactly one
// active listener; callbacks are invoked from engine goroutines and must not
// block for long.
type Listener interface {
	OnStateChange(state session.State)
	OnVolumeChange(level float64)
	OnTranscript(text string, direction protocol.Direction, final bool)
	OnError(message string)
	OnDisconnect()
}

// NopListener is an embeddable no-op Listener.
type NopListener struct{}

func (NopListener) OnStateChange(session.State)                   {}
func (NopListener) OnVolumeChange(float64)                        {}
func (NopListener) OnTranscript(string, protocol.Direction, bool) {}
func (NopListener) OnError(string)                                {}
func (NopListener) OnDisconnect()                                 {}
