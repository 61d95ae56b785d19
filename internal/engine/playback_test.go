package engine

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/audio"
)

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlaybackQueuePlaysInOrder(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)

	chunks := [][]byte{
		bytes.Repeat([]byte{0x01, 0x02}, 8),
		bytes.Repeat([]byte{0x03, 0x04}, 8),
		bytes.Repeat([]byte{0x05, 0x06}, 8),
	}
	for _, c := range chunks {
		q.Enqueue(c)
	}

	waitUntil(t, "all chunks played", func() bool { return len(device.Played()) == 3 })
	waitUntil(t, "queue idle", q.Idle)

	for i, unit := range device.Played() {
		if !bytes.HasPrefix(unit, []byte("RIFF")) {
			t.Fatalf("unit %d is not a WAV container", i)
		}
		if !bytes.HasSuffix(unit, chunks[i]) {
			t.Fatalf("unit %d payload does not match chunk %d", i, i)
		}
	}
}

func TestPlaybackQueueFlushMidPlay(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	gate := make(chan struct{})
	device.SetGate(gate)
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)

	q.Enqueue(bytes.Repeat([]byte{0x10}, 16))
	q.Enqueue(bytes.Repeat([]byte{0x20}, 16))
	waitUntil(t, "first chunk reaches device", func() bool { return len(device.Played()) == 1 })

	q.Flush()

	waitUntil(t, "queue idle after flush", q.Idle)
	time.Sleep(50 * time.Millisecond)
	if got := len(device.Played()); got != 1 {
		t.Fatalf("played %d units after flush, want 1", got)
	}
}

func TestPlaybackQueueResumesAfterFlush(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)

	q.Enqueue(bytes.Repeat([]byte{0x01}, 8))
	waitUntil(t, "queue idle", q.Idle)
	q.Flush()

	next := bytes.Repeat([]byte{0x02}, 8)
	q.Enqueue(next)
	waitUntil(t, "post-flush chunk played", func() bool { return len(device.Played()) == 2 })
	if !bytes.HasSuffix(device.Played()[1], next) {
		t.Fatalf("post-flush unit payload mismatch")
	}
}

func TestPlaybackQueueSkipsUndecodableChunk(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)
	var skipped atomic.Int64
	q.onSkipped = func(error) { skipped.Add(1) }

	good := bytes.Repeat([]byte{0x7f}, 8)
	q.Enqueue(good)
	q.Enqueue(nil) // wrapping fails, the queue must advance past it
	q.Enqueue(good)

	waitUntil(t, "two good chunks played", func() bool { return len(device.Played()) == 2 })
	waitUntil(t, "skip reported", func() bool { return skipped.Load() == 1 })
	waitUntil(t, "queue idle", q.Idle)
}

func TestPlaybackQueueDrainedCallback(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)
	var drained atomic.Int64
	q.onDrained = func() { drained.Add(1) }

	q.Enqueue(bytes.Repeat([]byte{0x01}, 8))
	waitUntil(t, "drained callback", func() bool { return drained.Load() == 1 })
}

func TestPlaybackQueueDeviceFailureHalts(t *testing.T) {
	device := audio.NewMockPlaybackDevice()
	device.SetError(errors.New("device gone"))
	q := newPlaybackQueue(device, audio.DefaultPlaybackRate)
	var deviceErr atomic.Value
	q.onDevice = func(err error) { deviceErr.Store(err) }

	q.Enqueue(bytes.Repeat([]byte{0x01}, 8))

	waitUntil(t, "device error reported", func() bool { return deviceErr.Load() != nil })
	waitUntil(t, "queue idle after failure", q.Idle)
}
