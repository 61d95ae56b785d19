package audio

import "context"

// CaptureDevice delivers raw PCM frames from a microphone. Frames stop when
// the context is cancelled or Stop is called; the returned channel is closed
// when capture ends.
type CaptureDevice interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// PlaybackDevice plays one self-contained audio unit (a WAV-wrapped chunk)
// and blocks until playback finishes or the context is cancelled.
type PlaybackDevice interface {
	Play(ctx context.Context, unit []byte) error
}
