package transport

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
	"github.com/danghoangsqtt-sys/nana-app/internal/reliability"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 4 << 20
	pongWait     = 120 * time.Second
)

var ErrClosed = errors.New("transport session closed")

// Config describes how to reach the remote speech model.
type Config struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
}

// Session is one live bidirectional channel to the remote model. Sends are
// serialized through a mutex; inbound events are delivered in arrival order
// on the Events channel, which closes when the connection ends.
type Session struct {
	conn *websocket.Conn

	sendMu sync.Mutex

	events    chan any
	closeOnce sync.Once
	done      chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// Dial connects and sends the setup payload before returning.
func Dial(ctx context.Context, cfg Config, setup protocol.Setup) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("transport: missing URL")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 15 * time.Second
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:   conn,
		events: make(chan any, 256),
		done:   make(chan struct{}),
	}

	setup.Type = protocol.TypeSetup
	if err := s.writeJSON(setup); err != nil {
		_ = conn.Close()
		return nil, err
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	return s, nil
}

// Events delivers typed server messages in arrival order. The channel closes
// when the session ends, locally or remotely.
func (s *Session) Events() <-chan any { return s.events }

// Err reports why the session ended, if it ended abnormally.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

func (s *Session) SendAudio(chunk protocol.ClientAudioChunk) error {
	chunk.Type = protocol.TypeClientAudioChunk
	return s.writeJSON(chunk)
}

func (s *Session) SendToolResults(resp protocol.ToolResponse) error {
	resp.Type = protocol.TypeToolResponse
	return s.writeJSON(resp)
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sendMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.sendMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}

func (s *Session) writeJSON(v any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) readLoop() {
	defer close(s.events)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(err)
				if code, ok := CloseCode(err); ok {
					log.Printf("transport: connection closed code=%d retryable=%v",
						code, reliability.IsRetryableCloseCode(code))
				}
			}
			_ = s.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseServerMessage(data)
		if err != nil {
			// A malformed event must never terminate the session.
			if !errors.Is(err, protocol.ErrUnsupportedType) {
				log.Printf("transport: dropping malformed event: %v", err)
			}
			continue
		}
		select {
		case <-s.done:
			return
		case s.events <- parsed:
		}
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.lastErr == nil {
		s.lastErr = err
	}
}

// CloseCode extracts the websocket close code from a read error, if any.
func CloseCode(err error) (int, bool) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, true
	}
	return 0, false
}
