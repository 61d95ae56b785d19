package protocol

import (
	"errors"
	"testing"
)

func TestParseServerMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"server_audio_chunk","pcm16_base64":"AAEC","sample_rate":24000}`)
	parsed, err := ParseServerMessage(raw)
	if err != nil {
		t.Fatalf("ParseServerMessage() error = %v", err)
	}
	msg, ok := parsed.(ServerAudioChunk)
	if !ok {
		t.Fatalf("parsed type = %T, want ServerAudioChunk", parsed)
	}
	if msg.PCM16Base64 != "AAEC" || msg.SampleRate != 24000 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseServerMessageTranscriptDelta(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"user delta", `{"type":"transcript_delta","direction":"user","text":"Hel"}`, false},
		{"model delta", `{"type":"transcript_delta","direction":"model","text":"lo"}`, false},
		{"bad direction", `{"type":"transcript_delta","direction":"narrator","text":"x"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseServerMessage([]byte(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseServerMessageSignals(t *testing.T) {
	parsed, err := ParseServerMessage([]byte(`{"type":"turn_complete"}`))
	if err != nil {
		t.Fatalf("turn_complete error = %v", err)
	}
	if _, ok := parsed.(TurnComplete); !ok {
		t.Fatalf("parsed type = %T, want TurnComplete", parsed)
	}

	parsed, err = ParseServerMessage([]byte(`{"type":"interrupted"}`))
	if err != nil {
		t.Fatalf("interrupted error = %v", err)
	}
	if _, ok := parsed.(Interrupted); !ok {
		t.Fatalf("parsed type = %T, want Interrupted", parsed)
	}
}

func TestParseServerMessageToolCall(t *testing.T) {
	raw := []byte(`{"type":"tool_call","requests":[{"id":"1","name":"open_settings"},{"id":"2","name":"set_reminder","args":{"task":"tea","time":"10:00"}}]}`)
	parsed, err := ParseServerMessage(raw)
	if err != nil {
		t.Fatalf("ParseServerMessage() error = %v", err)
	}
	msg, ok := parsed.(ToolCall)
	if !ok {
		t.Fatalf("parsed type = %T, want ToolCall", parsed)
	}
	if len(msg.Requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(msg.Requests))
	}
	if msg.Requests[1].Args["task"] != "tea" {
		t.Fatalf("args not decoded: %+v", msg.Requests[1])
	}

	if _, err := ParseServerMessage([]byte(`{"type":"tool_call","requests":[]}`)); err == nil {
		t.Fatalf("empty tool_call batch should be rejected")
	}
}

func TestParseServerMessageUnsupported(t *testing.T) {
	_, err := ParseServerMessage([]byte(`{"type":"pong"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseServerMessageMalformed(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{`)); err == nil {
		t.Fatalf("malformed JSON should error")
	}
	if _, err := ParseServerMessage([]byte(`{"type":"server_audio_chunk"}`)); err == nil {
		t.Fatalf("audio chunk without payload should be rejected")
	}
}
