package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"

	"github.com/danghoangsqtt-sys/nana-app/internal/audio"
	"github.com/danghoangsqtt-sys/nana-app/internal/config"
	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
)

// CaptureStrategy decides which microphone frames are forwarded to the
// remote session. Two policies exist: a local noise gate on continuous
// streaming, and fixed-chunk forwarding that leaves voice detection to the
// server.
type CaptureStrategy interface {
	Name() string
	Admit(loudness float64) bool
}

// NoiseGateStrategy drops frames at or below an amplitude threshold derived
// from the sensitivity knob: threshold = (maxSensitivity - sensitivity) *
// scale, so higher sensitivity admits more frames. This is a bandwidth
// saver, not true voice-activity detection.
type NoiseGateStrategy struct {
	threshold float64
}

func NewNoiseGateStrategy(sensitivity float64) *NoiseGateStrategy {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > config.MaxSensitivity {
		sensitivity = config.MaxSensitivity
	}
	return &NoiseGateStrategy{threshold: (config.MaxSensitivity - sensitivity) * config.GateScale}
}

func (s *NoiseGateStrategy) Name() string { return config.CaptureModeGate }

func (s *NoiseGateStrategy) Admit(loudness float64) bool {
	return loudness > s.threshold
}

// Threshold exposes the derived gate level for status surfaces.
func (s *NoiseGateStrategy) Threshold() float64 { return s.threshold }

// ServerVADStrategy forwards every frame and relies on the server's voice
// activity detection.
type ServerVADStrategy struct{}

func NewServerVADStrategy() *ServerVADStrategy { return &ServerVADStrategy{} }

func (s *ServerVADStrategy) Name() string { return config.CaptureModeServerVAD }

func (s *ServerVADStrategy) Admit(float64) bool { return true }

// NewCaptureStrategy builds the strategy named by mode.
func NewCaptureStrategy(mode string, sensitivity float64) (CaptureStrategy, error) {
	switch mode {
	case config.CaptureModeGate:
		return NewNoiseGateStrategy(sensitivity), nil
	case config.CaptureModeServerVAD:
		return NewServerVADStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", mode)
	}
}

// capturePipeline pulls frames from the microphone device, meters each one,
// and forwards admitted frames to the transport. Sends are best-effort:
// failures are logged and capture continues.
type capturePipeline struct {
	device     audio.CaptureDevice
	meter      *audio.Meter
	strategy   CaptureStrategy
	sampleRate int

	send    func(chunk protocol.ClientAudioChunk) error
	onFrame func(loudness float64, admitted bool)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newCapturePipeline(
	device audio.CaptureDevice,
	meter *audio.Meter,
	strategy CaptureStrategy,
	sampleRate int,
	send func(chunk protocol.ClientAudioChunk) error,
	onFrame func(loudness float64, admitted bool),
) *capturePipeline {
	return &capturePipeline{
		device:     device,
		meter:      meter,
		strategy:   strategy,
		sampleRate: sampleRate,
		send:       send,
		onFrame:    onFrame,
	}
}

func (p *capturePipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	frames, err := p.device.Start(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("capture device: %w", err)
	}

	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		for {
			select {
			case <-runCtx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				p.handleFrame(frame)
			}
		}
	}()
	return nil
}

func (p *capturePipeline) handleFrame(frame []byte) {
	loudness := p.meter.Measure(frame)
	admitted := p.strategy.Admit(loudness)
	if p.onFrame != nil {
		p.onFrame(loudness, admitted)
	}
	if !admitted {
		return
	}
	if p.send == nil {
		// No established session: drop, no buffering across the boundary.
		return
	}
	chunk := protocol.ClientAudioChunk{
		PCM16Base64: base64.StdEncoding.EncodeToString(frame),
		SampleRate:  p.sampleRate,
	}
	if err := p.send(chunk); err != nil {
		log.Printf("capture: send audio chunk failed: %v", err)
	}
}

// Stop is idempotent and safe to call even if capture was never started.
func (p *capturePipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = p.device.Stop()
	if done != nil {
		<-done
	}
}
