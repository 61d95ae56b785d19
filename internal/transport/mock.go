package transport

import (
	"sync"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
)

// Mock is an in-memory transport session for tests: it records what the
// engine sends and lets tests inject server events.
type Mock struct {
	mu          sync.Mutex
	events      chan any
	audioSent   []protocol.ClientAudioChunk
	toolResults []protocol.ToolResponse
	sendErr     error
	closed      bool
}

func NewMock() *Mock {
	return &Mock{events: make(chan any, 256)}
}

func (m *Mock) Events() <-chan any { return m.events }

func (m *Mock) SendAudio(chunk protocol.ClientAudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return ErrClosed
	}
	chunk.Type = protocol.TypeClientAudioChunk
	m.audioSent = append(m.audioSent, chunk)
	return nil
}

func (m *Mock) SendToolResults(resp protocol.ToolResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return ErrClosed
	}
	resp.Type = protocol.TypeToolResponse
	m.toolResults = append(m.toolResults, resp)
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

// Deliver injects one server event, as if read from the wire.
func (m *Mock) Deliver(evt any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- evt
}

// SetSendErr makes subsequent sends fail.
func (m *Mock) SetSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *Mock) AudioSent() []protocol.ClientAudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.ClientAudioChunk, len(m.audioSent))
	copy(out, m.audioSent)
	return out
}

func (m *Mock) ToolResults() []protocol.ToolResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.ToolResponse, len(m.toolResults))
	copy(out, m.toolResults)
	return out
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
