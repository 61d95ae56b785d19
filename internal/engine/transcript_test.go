package engine

import (
	"testing"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
)

func TestTranscriptAssemblerAccumulatesDeltas(t *testing.T) {
	asm := newTranscriptAssembler()

	if got := asm.AppendDelta(protocol.DirectionModel, "Hel"); got != "Hel" {
		t.Fatalf("live transcript = %q, want %q", got, "Hel")
	}
	if got := asm.AppendDelta(protocol.DirectionModel, "lo"); got != "Hello" {
		t.Fatalf("live transcript = %q, want %q", got, "Hello")
	}

	msgs := asm.CompleteTurn()
	if len(msgs) != 1 {
		t.Fatalf("CompleteTurn returned %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != protocol.DirectionModel || msgs[0].Text != "Hello" {
		t.Fatalf("message = %+v, want model %q", msgs[0], "Hello")
	}
}

func TestTranscriptAssemblerUserPrecedesModel(t *testing.T) {
	asm := newTranscriptAssembler()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	asm.now = func() time.Time { return fixed }

	asm.AppendDelta(protocol.DirectionModel, "Sure, here it is.")
	asm.AppendDelta(protocol.DirectionUser, "Play a song")

	msgs := asm.CompleteTurn()
	if len(msgs) != 2 {
		t.Fatalf("CompleteTurn returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != protocol.DirectionUser {
		t.Fatalf("first message role = %q, want user", msgs[0].Role)
	}
	if msgs[1].Role != protocol.DirectionModel {
		t.Fatalf("second message role = %q, want model", msgs[1].Role)
	}
	if !msgs[0].Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", msgs[0].Timestamp, fixed)
	}
}

func TestTranscriptAssemblerEmptyTurn(t *testing.T) {
	asm := newTranscriptAssembler()
	if msgs := asm.CompleteTurn(); len(msgs) != 0 {
		t.Fatalf("CompleteTurn on empty buffers returned %d messages, want 0", len(msgs))
	}
}

func TestTranscriptAssemblerDiscardSuppressesTurn(t *testing.T) {
	asm := newTranscriptAssembler()
	asm.AppendDelta(protocol.DirectionModel, "never finished")
	asm.AppendDelta(protocol.DirectionUser, "stop")

	asm.Discard(protocol.DirectionModel)

	msgs := asm.CompleteTurn()
	if len(msgs) != 1 {
		t.Fatalf("CompleteTurn returned %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != protocol.DirectionUser || msgs[0].Text != "stop" {
		t.Fatalf("message = %+v, want user %q", msgs[0], "stop")
	}
}

func TestTranscriptAssemblerReset(t *testing.T) {
	asm := newTranscriptAssembler()
	asm.AppendDelta(protocol.DirectionUser, "hello")
	asm.AppendDelta(protocol.DirectionModel, "hi")
	asm.Reset()
	if msgs := asm.CompleteTurn(); len(msgs) != 0 {
		t.Fatalf("CompleteTurn after Reset returned %d messages, want 0", len(msgs))
	}
}
