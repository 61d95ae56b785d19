package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies live-session payload variants.
type MessageType string

const (
	// Client → server.
	TypeSetup            MessageType = "setup"
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeToolResponse     MessageType = "tool_response"

	// Server → client.
	TypeServerAudioChunk MessageType = "server_audio_chunk"
	TypeTranscriptDelta  MessageType = "transcript_delta"
	TypeTurnComplete     MessageType = "turn_complete"
	TypeInterrupted      MessageType = "interrupted"
	TypeToolCall         MessageType = "tool_call"
	TypeSessionError     MessageType = "session_error"
)

// Direction names the speaker side of a transcript.
type Direction string

const (
	DirectionUser  Direction = "user"
	DirectionModel Direction = "model"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ToolDecl advertises one callable tool to the remote model at setup.
type ToolDecl struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Setup opens a session: model selection, persona instruction, voice, and
// the tool surface available for this mode.
type Setup struct {
	Type              MessageType `json:"type"`
	Model             string      `json:"model"`
	SystemInstruction string      `json:"system_instruction,omitempty"`
	Voice             string      `json:"voice,omitempty"`
	InputSampleRate   int         `json:"input_sample_rate"`
	OutputSampleRate  int         `json:"output_sample_rate"`
	Tools             []ToolDecl  `json:"tools,omitempty"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
}

// ToolRequest is one remote tool invocation inside a ToolCall batch.
type ToolRequest struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult answers exactly one ToolRequest. Either Response or Error is
// set, never both.
type ToolResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type ToolResponse struct {
	Type    MessageType  `json:"type"`
	Results []ToolResult `json:"results"`
}

type ServerAudioChunk struct {
	Type        MessageType `json:"type"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate,omitempty"`
}

type TranscriptDelta struct {
	Type      MessageType `json:"type"`
	Direction Direction   `json:"direction"`
	Text      string      `json:"text"`
}

type TurnComplete struct {
	Type MessageType `json:"type"`
}

type Interrupted struct {
	Type MessageType `json:"type"`
}

type ToolCall struct {
	Type     MessageType   `json:"type"`
	Requests []ToolRequest `json:"requests"`
}

type SessionError struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

// ParseServerMessage decodes one inbound payload into its typed form.
// Unknown types return ErrUnsupportedType so the receive loop can skip them
// without tearing the session down.
func ParseServerMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeServerAudioChunk:
		var msg ServerAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" {
			return nil, errors.New("invalid server_audio_chunk")
		}
		return msg, nil
	case TypeTranscriptDelta:
		var msg TranscriptDelta
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Direction != DirectionUser && msg.Direction != DirectionModel {
			return nil, errors.New("invalid transcript_delta direction")
		}
		return msg, nil
	case TypeTurnComplete:
		return TurnComplete{Type: TypeTurnComplete}, nil
	case TypeInterrupted:
		return Interrupted{Type: TypeInterrupted}, nil
	case TypeToolCall:
		var msg ToolCall
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if len(msg.Requests) == 0 {
			return nil, errors.New("invalid tool_call: empty batch")
		}
		return msg, nil
	case TypeSessionError:
		var msg SessionError
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
