package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
)

// transcriptAssembler accumulates incremental text deltas per direction and
// converts each non-empty buffer into exactly one ChatMessage at turn
// completion. A buffer discarded by interruption is never emitted.
type transcriptAssembler struct {
	mu      sync.Mutex
	buffers map[protocol.Direction]*strings.Builder
	now     func() time.Time
}

func newTranscriptAssembler() *transcriptAssembler {
	return &transcriptAssembler{
		buffers: map[protocol.Direction]*strings.Builder{
			protocol.DirectionUser:  {},
			protocol.DirectionModel: {},
		},
		now: time.Now,
	}
}

// AppendDelta appends text to the direction's buffer and returns the full
// accumulated live transcript for UI echo.
func (a *transcriptAssembler) AppendDelta(dir protocol.Direction, text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[dir]
	if !ok {
		return ""
	}
	buf.WriteString(text)
	return buf.String()
}

// CompleteTurn finalizes every non-empty buffer into a ChatMessage and
// clears it. User precedes model in the returned slice.
func (a *transcriptAssembler) CompleteTurn() []ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []ChatMessage
	ts := a.now()
	for _, dir := range []protocol.Direction{protocol.DirectionUser, protocol.DirectionModel} {
		buf := a.buffers[dir]
		if buf.Len() == 0 {
			continue
		}
		out = append(out, ChatMessage{Role: dir, Text: buf.String(), Timestamp: ts})
		buf.Reset()
	}
	return out
}

// Discard drops the direction's partial buffer without emitting it.
func (a *transcriptAssembler) Discard(dir protocol.Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.buffers[dir]; ok {
		buf.Reset()
	}
}

// Reset clears both buffers.
func (a *transcriptAssembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, buf := range a.buffers {
		buf.Reset()
	}
}
