package audio

import (
	"context"
	"sync"
)

// MockCaptureDevice is a test microphone fed by Push.
type MockCaptureDevice struct {
	mu      sync.Mutex
	frames  chan []byte
	started bool
	stopped bool
}

func NewMockCaptureDevice() *MockCaptureDevice {
	return &MockCaptureDevice{frames: make(chan []byte, 64)}
}

func (d *MockCaptureDevice) Start(ctx context.Context) (<-chan []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-d.frames:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- f:
				}
			}
		}
	}()
	return out, nil
}

// Push delivers one frame as if read from the microphone.
func (d *MockCaptureDevice) Push(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.frames <- frame
}

func (d *MockCaptureDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil
	}
	d.stopped = true
	close(d.frames)
	return nil
}

func (d *MockCaptureDevice) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// MockPlaybackDevice records units in play order. Playback completes
// immediately unless a Gate channel is installed, in which case Play blocks
// until the gate yields or the context is cancelled.
type MockPlaybackDevice struct {
	mu     sync.Mutex
	played [][]byte
	gate   chan struct{}
	err    error
}

func NewMockPlaybackDevice() *MockPlaybackDevice { return &MockPlaybackDevice{} }

// SetGate makes subsequent Play calls block until the channel yields.
func (d *MockPlaybackDevice) SetGate(gate chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = gate
}

// SetError makes subsequent Play calls fail.
func (d *MockPlaybackDevice) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *MockPlaybackDevice) Play(ctx context.Context, unit []byte) error {
	d.mu.Lock()
	gate := d.gate
	err := d.err
	if err == nil {
		cp := make([]byte, len(unit))
		copy(cp, unit)
		d.played = append(d.played, cp)
	}
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}
	return nil
}

// Played returns a copy of the units played so far, in order.
func (d *MockPlaybackDevice) Played() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.played))
	copy(out, d.played)
	return out
}
