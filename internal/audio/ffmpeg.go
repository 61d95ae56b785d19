package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// FFmpegCapture reads microphone audio through an ffmpeg subprocess and
// delivers fixed-size raw PCM16LE frames. It avoids a cgo audio dependency;
// any ffmpeg with a default input device works.
type FFmpegCapture struct {
	Path       string
	SampleRate int
	FrameBytes int

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

func NewFFmpegCapture(path string, sampleRate, frameBytes int) *FFmpegCapture {
	if path == "" {
		path = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultCaptureRate
	}
	if frameBytes <= 0 {
		frameBytes = 4096
	}
	return &FFmpegCapture{Path: path, SampleRate: sampleRate, FrameBytes: frameBytes}
}

func (d *FFmpegCapture) Start(ctx context.Context) (<-chan []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return nil, fmt.Errorf("capture already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := append(captureInputArgs(), "-ac", "1", "-ar", strconv.Itoa(d.SampleRate), "-f", "s16le", "-")
	cmd := exec.CommandContext(runCtx, d.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", d.Path, err)
	}
	d.cmd = cmd
	d.cancel = cancel

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		defer cmd.Wait()
		for {
			buf := make([]byte, d.FrameBytes)
			if _, err := io.ReadFull(stdout, buf); err != nil {
				return
			}
			select {
			case <-runCtx.Done():
				return
			case frames <- buf:
			}
		}
	}()
	return frames, nil
}

func (d *FFmpegCapture) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.cmd = nil
	return nil
}

func captureInputArgs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-i", ":0"}
	case "windows":
		return []string{"-f", "dshow", "-i", "audio=default"}
	default:
		return []string{"-f", "pulse", "-i", "default"}
	}
}

// FFPlayDevice plays one WAV unit per invocation through ffplay, blocking
// until the process exits. Cancelling the context kills the process, which
// is how flush cuts playback mid-chunk.
type FFPlayDevice struct {
	Path   string
	Volume int
}

func NewFFPlayDevice(path string, volume int) *FFPlayDevice {
	if path == "" {
		path = "ffplay"
	}
	if volume <= 0 {
		volume = 80
	}
	return &FFPlayDevice{Path: path, Volume: volume}
}

func (d *FFPlayDevice) Play(ctx context.Context, unit []byte) error {
	cmd := exec.CommandContext(ctx, d.Path,
		"-autoexit", "-nodisp", "-loglevel", "error",
		"-volume", strconv.Itoa(d.Volume),
		"-i", "-",
	)
	cmd.Stdin = bytes.NewReader(unit)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", d.Path, err)
	}
	return nil
}
