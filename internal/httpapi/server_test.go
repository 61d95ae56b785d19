package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/config"
	"github.com/danghoangsqtt-sys/nana-app/internal/engine"
	"github.com/danghoangsqtt-sys/nana-app/internal/observability"
	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
	"github.com/danghoangsqtt-sys/nana-app/internal/session"
)

var testMetrics = observability.NewMetrics("httpapitest")

type stubEngine struct {
	state    session.State
	snapshot *session.Snapshot
	strategy string
}

func (s *stubEngine) State() session.State { return s.state }

func (s *stubEngine) Snapshot() (session.Snapshot, bool) {
	if s.snapshot == nil {
		return session.Snapshot{}, false
	}
	return *s.snapshot, true
}

func (s *stubEngine) CaptureStrategyName() string { return s.strategy }

type stubMessages struct {
	msgs []engine.ChatMessage
}

func (s *stubMessages) Messages() []engine.ChatMessage { return s.msgs }

func testConfig() config.Config {
	return config.Config{
		Mode:             config.ModeAssistant,
		Model:            "nana-speech-native-audio",
		VoiceName:        "Zephyr",
		CaptureMode:      config.CaptureModeGate,
		VoiceSensitivity: 1.5,
		FirstAudioSLO:    700 * time.Millisecond,
	}
}

func newTestServer(eng EngineStatus, msgs MessageSource) *httptest.Server {
	s := New(testConfig(), eng, msgs, testMetrics)
	return httptest.NewServer(s.Router())
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubEngine{state: session.StateIdle}, &stubMessages{})
	defer srv.Close()

	var body map[string]any
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if body["mode"] != config.ModeAssistant {
		t.Fatalf("mode = %v, want assistant", body["mode"])
	}
}

func TestStatusIdle(t *testing.T) {
	srv := newTestServer(&stubEngine{state: session.StateIdle}, &stubMessages{})
	defer srv.Close()

	var body statusResponse
	if code := getJSON(t, srv.URL+"/v1/status", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.State != session.StateIdle {
		t.Fatalf("state = %q, want idle", body.State)
	}
	if body.Session != nil {
		t.Fatalf("session = %+v, want absent when idle", body.Session)
	}
	if body.Capture.Mode != config.CaptureModeGate {
		t.Fatalf("capture mode = %q", body.Capture.Mode)
	}
	// sensitivity 1.5 puts the gate at 5.
	if body.Capture.GateThreshold != 5 {
		t.Fatalf("gate threshold = %v, want 5", body.Capture.GateThreshold)
	}
	if body.FirstAudioSLOMS != 700 {
		t.Fatalf("first audio target = %dms, want 700", body.FirstAudioSLOMS)
	}
}

func TestStatusWithLiveSession(t *testing.T) {
	snap := session.Snapshot{
		ID:                "abc-123",
		StartedAt:         time.Now().UTC(),
		LastActivityAt:    time.Now().UTC(),
		InterruptionCount: 2,
	}
	srv := newTestServer(&stubEngine{
		state:    session.StateSpeaking,
		snapshot: &snap,
		strategy: config.CaptureModeGate,
	}, &stubMessages{})
	defer srv.Close()

	var body statusResponse
	getJSON(t, srv.URL+"/v1/status", &body)
	if body.State != session.StateSpeaking {
		t.Fatalf("state = %q, want speaking", body.State)
	}
	if body.Session == nil || body.Session.ID != "abc-123" {
		t.Fatalf("session = %+v, want id abc-123", body.Session)
	}
	if body.Session.InterruptionCount != 2 {
		t.Fatalf("interruption count = %d, want 2", body.Session.InterruptionCount)
	}
}

func TestMessages(t *testing.T) {
	msgs := &stubMessages{msgs: []engine.ChatMessage{
		{Role: protocol.DirectionUser, Text: "hello", Timestamp: time.Now().UTC()},
		{Role: protocol.DirectionModel, Text: "hi there", Timestamp: time.Now().UTC()},
	}}
	srv := newTestServer(&stubEngine{state: session.StateListening}, msgs)
	defer srv.Close()

	var body struct {
		Messages []engine.ChatMessage `json:"messages"`
		Count    int                  `json:"count"`
	}
	if code := getJSON(t, srv.URL+"/v1/messages", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.Count != 2 || len(body.Messages) != 2 {
		t.Fatalf("count = %d, messages = %d, want 2", body.Count, len(body.Messages))
	}
	if body.Messages[0].Role != protocol.DirectionUser || body.Messages[0].Text != "hello" {
		t.Fatalf("messages[0] = %+v", body.Messages[0])
	}
}

func TestMessagesEmpty(t *testing.T) {
	srv := newTestServer(&stubEngine{state: session.StateIdle}, &stubMessages{})
	defer srv.Close()

	var body struct {
		Messages []engine.ChatMessage `json:"messages"`
		Count    int                  `json:"count"`
	}
	getJSON(t, srv.URL+"/v1/messages", &body)
	if body.Count != 0 || body.Messages == nil {
		t.Fatalf("empty log must serialize as an empty array, got %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubEngine{state: session.StateIdle}, &stubMessages{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
