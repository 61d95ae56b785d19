package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/audio"
	"github.com/danghoangsqtt-sys/nana-app/internal/config"
	"github.com/danghoangsqtt-sys/nana-app/internal/observability"
	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
	"github.com/danghoangsqtt-sys/nana-app/internal/reliability"
	"github.com/danghoangsqtt-sys/nana-app/internal/session"
)

const toolBatchTimeout = 30 * time.Second

// Transport is the engine's view of one live session to the remote model.
type Transport interface {
	Events() <-chan any
	SendAudio(chunk protocol.ClientAudioChunk) error
	SendToolResults(resp protocol.ToolResponse) error
	Close() error
}

// Dialer opens a Transport. The tool declarations are the surface the engine
// advertises at setup.
type Dialer func(ctx context.Context, tools []protocol.ToolDecl) (Transport, error)

// Config holds the engine's policy knobs.
type Config struct {
	Sensitivity        float64
	CaptureMode        string
	CaptureSampleRate  int
	PlaybackSampleRate int
	// BargeInFrames is how many consecutive gate-admitted frames during
	// playback count as local barge-in. 0 disables the local trigger.
	BargeInFrames int
	// FirstAudioSLO is the turn-taking latency target from the end of a
	// user turn to the first response chunk. 0 disables the check.
	FirstAudioSLO time.Duration
}

// Engine owns the live audio session lifecycle: it gates and streams
// microphone audio out, queues and plays response audio in, reacts to
// interruption, assembles transcripts, and dispatches tool calls. At most
// one session is live at a time; the engine is reusable across sessions.
type Engine struct {
	cfg            Config
	dial           Dialer
	captureDevice  audio.CaptureDevice
	playbackDevice audio.PlaybackDevice
	meter          *audio.Meter
	tools          *ToolDispatcher
	listener       Listener
	metrics        *observability.Metrics

	mu              sync.Mutex
	gen             int64
	sess            *session.Session
	state           session.State
	transport       Transport
	capture         *capturePipeline
	playback        *playbackQueue
	assembler       *transcriptAssembler
	cancelRun       context.CancelFunc
	strategyName    string
	speechRun       int
	lastUserTurnEnd time.Time
	firstAudioSeen  bool
}

func New(
	cfg Config,
	dial Dialer,
	captureDevice audio.CaptureDevice,
	playbackDevice audio.PlaybackDevice,
	tools *ToolDispatcher,
	listener Listener,
	metrics *observability.Metrics,
) *Engine {
	if listener == nil {
		listener = NopListener{}
	}
	if tools == nil {
		tools = NewToolDispatcher()
	}
	if cfg.CaptureSampleRate <= 0 {
		cfg.CaptureSampleRate = audio.DefaultCaptureRate
	}
	if cfg.PlaybackSampleRate <= 0 {
		cfg.PlaybackSampleRate = audio.DefaultPlaybackRate
	}
	if cfg.CaptureMode == "" {
		cfg.CaptureMode = config.CaptureModeGate
	}
	return &Engine{
		cfg:            cfg,
		dial:           dial,
		captureDevice:  captureDevice,
		playbackDevice: playbackDevice,
		meter:          audio.NewMeter(),
		tools:          tools,
		listener:       listener,
		metrics:        metrics,
		state:          session.StateIdle,
	}
}

// Tools exposes the dispatcher so callers can register handlers.
func (e *Engine) Tools() *ToolDispatcher { return e.tools }

// State returns the current conversation state.
func (e *Engine) State() session.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns session accounting if a session is live.
func (e *Engine) Snapshot() (session.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return session.Snapshot{}, false
	}
	return e.sess.Snapshot(), true
}

// CaptureStrategyName names the active gating policy, if connected.
func (e *Engine) CaptureStrategyName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategyName
}

// Connect tears down any existing session, dials a fresh transport, and
// starts the capture, playback, and receive loops. On success the state is
// Listening.
func (e *Engine) Connect(ctx context.Context) error {
	e.Disconnect()

	strategy, err := NewCaptureStrategy(e.cfg.CaptureMode, e.cfg.Sensitivity)
	if err != nil {
		return err
	}

	t, err := e.dial(ctx, e.tools.Declarations())
	if err != nil {
		e.metrics.SessionEvents.WithLabelValues("connect_failed").Inc()
		e.listener.OnError(fmt.Sprintf("connect failed: %v", err))
		e.listener.OnDisconnect()
		return err
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.sess = session.New()
	e.transport = t
	e.assembler = newTranscriptAssembler()
	e.cancelRun = cancelRun
	e.strategyName = strategy.Name()
	e.speechRun = 0
	e.lastUserTurnEnd = time.Time{}
	e.firstAudioSeen = false

	pq := newPlaybackQueue(e.playbackDevice, e.cfg.PlaybackSampleRate)
	pq.onDrained = func() { e.maybeListening(gen) }
	pq.onSkipped = func(err error) {
		e.metrics.PlaybackChunks.WithLabelValues("skipped").Inc()
		log.Printf("engine: dropped undecodable chunk: %v", err)
	}
	pq.onDevice = func(err error) { e.deviceError(gen, "playback", err) }
	e.playback = pq

	cp := newCapturePipeline(e.captureDevice, e.meter, strategy, e.cfg.CaptureSampleRate,
		t.SendAudio,
		func(loudness float64, admitted bool) { e.captureFrame(gen, loudness, admitted) },
	)
	e.capture = cp
	e.state = session.StateListening
	e.mu.Unlock()

	e.metrics.SessionEvents.WithLabelValues("connected").Inc()
	e.listener.OnStateChange(session.StateListening)

	if err := cp.Start(runCtx); err != nil {
		// Capture is down but the session can still play responses.
		e.deviceError(gen, "capture", err)
	}

	go e.receiveLoop(gen, t)
	return nil
}

// Disconnect tears the live session down: stops capture, flushes playback,
// closes the transport, clears transcript buffers. Idempotent and safe to
// call when never connected.
func (e *Engine) Disconnect() {
	e.teardown(session.StateIdle)
}

// Sleep tears the session down into the Sleep state; re-entry requires a
// fresh Connect.
func (e *Engine) Sleep() {
	e.metrics.SessionEvents.WithLabelValues("sleep").Inc()
	e.teardown(session.StateSleep)
}

// SetThinking toggles the Thinking display hint. The core never infers
// Thinking on its own; this exists for callers with out-of-band knowledge
// that the remote side is processing.
func (e *Engine) SetThinking(on bool) {
	e.mu.Lock()
	var next session.State
	switch {
	case e.sess == nil:
		e.mu.Unlock()
		return
	case on && e.state == session.StateListening:
		next = session.StateThinking
	case !on && e.state == session.StateThinking:
		next = session.StateListening
	default:
		e.mu.Unlock()
		return
	}
	e.state = next
	e.mu.Unlock()
	e.listener.OnStateChange(next)
}

func (e *Engine) teardown(final session.State) {
	e.mu.Lock()
	if e.sess == nil {
		changed := final == session.StateIdle && e.state != session.StateIdle
		if changed {
			e.state = session.StateIdle
		}
		e.mu.Unlock()
		if changed {
			e.listener.OnStateChange(session.StateIdle)
		}
		return
	}
	e.gen++
	capture := e.capture
	playback := e.playback
	t := e.transport
	cancel := e.cancelRun
	asm := e.assembler
	e.capture = nil
	e.playback = nil
	e.transport = nil
	e.cancelRun = nil
	e.assembler = nil
	e.sess = nil
	e.strategyName = ""
	e.state = final
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if capture != nil {
		capture.Stop()
	}
	if playback != nil {
		playback.Flush()
	}
	if t != nil {
		_ = t.Close()
	}
	if asm != nil {
		asm.Reset()
	}

	e.metrics.SessionEvents.WithLabelValues("disconnected").Inc()
	e.listener.OnStateChange(final)
	e.listener.OnDisconnect()
}

func (e *Engine) receiveLoop(gen int64, t Transport) {
	for evt := range t.Events() {
		if !e.isCurrent(gen) {
			return
		}
		switch m := evt.(type) {
		case protocol.ServerAudioChunk:
			e.handleAudio(gen, m)
		case protocol.TranscriptDelta:
			e.handleDelta(gen, m)
		case protocol.TurnComplete:
			e.handleTurnComplete(gen)
		case protocol.Interrupted:
			e.interrupt(gen, "server")
		case protocol.ToolCall:
			go e.handleToolCall(gen, t, m)
		case protocol.SessionError:
			e.handleSessionError(gen, m)
		default:
			// Unknown event shapes never terminate the session.
		}
	}
	e.transportClosed(gen, t)
}

func (e *Engine) handleAudio(gen int64, m protocol.ServerAudioChunk) {
	pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
	if err != nil || len(pcm) == 0 {
		e.metrics.PlaybackChunks.WithLabelValues("skipped").Inc()
		log.Printf("engine: dropped undecodable chunk: %v", err)
		return
	}

	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	e.sess.Touch()
	wasSpeaking := e.state == session.StateSpeaking
	if !wasSpeaking {
		e.state = session.StateSpeaking
	}
	var firstAudioLatency time.Duration
	if !e.firstAudioSeen && !e.lastUserTurnEnd.IsZero() {
		e.firstAudioSeen = true
		firstAudioLatency = time.Since(e.lastUserTurnEnd)
		e.metrics.ObserveFirstAudioLatency(firstAudioLatency)
	}
	// Enqueue under the lock so a concurrent teardown cannot flush and then
	// see this chunk restart playback.
	e.playback.Enqueue(pcm)
	e.mu.Unlock()

	if !wasSpeaking {
		e.listener.OnStateChange(session.StateSpeaking)
	}
	e.metrics.PlaybackChunks.WithLabelValues("enqueued").Inc()
	if e.cfg.FirstAudioSLO > 0 && firstAudioLatency > e.cfg.FirstAudioSLO {
		e.metrics.SessionEvents.WithLabelValues("first_audio_slo_miss").Inc()
		log.Printf("engine: first audio latency %s over target %s", firstAudioLatency, e.cfg.FirstAudioSLO)
	}
}

func (e *Engine) handleDelta(gen int64, m protocol.TranscriptDelta) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	e.sess.Touch()
	asm := e.assembler
	e.mu.Unlock()

	live := asm.AppendDelta(m.Direction, m.Text)
	e.listener.OnTranscript(live, m.Direction, false)
}

func (e *Engine) handleTurnComplete(gen int64) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	asm := e.assembler
	e.mu.Unlock()

	e.metrics.SessionEvents.WithLabelValues("turn_complete").Inc()
	msgs := asm.CompleteTurn()
	userSpoke := false
	for _, msg := range msgs {
		if msg.Role == protocol.DirectionUser {
			userSpoke = true
		}
		e.listener.OnTranscript(msg.Text, msg.Role, true)
	}

	e.mu.Lock()
	if e.gen == gen && userSpoke {
		e.lastUserTurnEnd = time.Now()
		e.firstAudioSeen = false
	}
	e.mu.Unlock()

	e.maybeListening(gen)
}

// maybeListening transitions back to Listening only when playback is truly
// idle. Enqueues happen under e.mu, so re-checking Idle here closes the
// window where a chunk arrives between the queue draining and the drain
// callback firing; the stale callback must not revert a live Speaking state.
func (e *Engine) maybeListening(gen int64) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil || e.playback == nil ||
		!e.playback.Idle() || e.state == session.StateListening {
		e.mu.Unlock()
		return
	}
	e.state = session.StateListening
	e.mu.Unlock()
	e.listener.OnStateChange(session.StateListening)
}

// interrupt implements barge-in: flush playback, discard the partial model
// transcript, and fall back to Listening. The discarded turn must never be
// emitted as a finalized message.
func (e *Engine) interrupt(gen int64, source string) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	pq := e.playback
	asm := e.assembler
	sess := e.sess
	e.speechRun = 0
	e.mu.Unlock()

	pq.Flush()
	asm.Discard(protocol.DirectionModel)
	sess.Interrupt()
	e.metrics.Interruptions.WithLabelValues(source).Inc()
	e.setState(gen, session.StateListening)
}

func (e *Engine) captureFrame(gen int64, loudness float64, admitted bool) {
	// Frames can drain out of the capture channel after teardown; a stale
	// frame must not reach the listener once OnDisconnect has fired.
	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	trigger := false
	if e.cfg.BargeInFrames > 0 {
		if admitted && e.state == session.StateSpeaking {
			e.speechRun++
			if e.speechRun >= e.cfg.BargeInFrames {
				e.speechRun = 0
				trigger = true
			}
		} else {
			e.speechRun = 0
		}
	}
	e.mu.Unlock()

	e.listener.OnVolumeChange(loudness)
	if admitted {
		e.metrics.CaptureFrames.WithLabelValues("admitted").Inc()
	} else {
		e.metrics.CaptureFrames.WithLabelValues("dropped").Inc()
	}
	if trigger {
		e.interrupt(gen, "local")
	}
}

// handleToolCall resolves the whole batch, then sends the results back as a
// single response. Tool failures stay between the engine and the model.
func (e *Engine) handleToolCall(gen int64, t Transport, m protocol.ToolCall) {
	ctx, cancel := context.WithTimeout(context.Background(), toolBatchTimeout)
	defer cancel()

	started := time.Now()
	results := e.tools.Dispatch(ctx, m.Requests)
	for _, r := range results {
		outcome := "ok"
		if r.Error != "" {
			outcome = "error"
		}
		e.metrics.ToolCalls.WithLabelValues(r.Name, outcome).Inc()
	}
	e.metrics.ObserveStageLatency("tool_roundtrip", time.Since(started))

	if !e.isCurrent(gen) {
		return
	}
	if err := t.SendToolResults(protocol.ToolResponse{Results: results}); err != nil {
		log.Printf("engine: send tool results failed: %v", err)
	}
}

func (e *Engine) handleSessionError(gen int64, m protocol.SessionError) {
	if !e.isCurrent(gen) {
		return
	}
	retryable := reliability.IsRetryableSessionCode(m.Code)
	log.Printf("engine: session error code=%s retryable=%v detail=%s", m.Code, retryable, m.Detail)
	e.listener.OnError(fmt.Sprintf("session error: %s", m.Code))
}

func (e *Engine) transportClosed(gen int64, t Transport) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.metrics.SessionEvents.WithLabelValues("transport_closed").Inc()
	if errSource, ok := t.(interface{ Err() error }); ok {
		if err := errSource.Err(); err != nil {
			e.listener.OnError(fmt.Sprintf("connection lost: %v", err))
		}
	}
	e.teardown(session.StateIdle)
}

func (e *Engine) deviceError(gen int64, stage string, err error) {
	if !e.isCurrent(gen) {
		return
	}
	e.metrics.SessionEvents.WithLabelValues("device_error").Inc()
	log.Printf("engine: %s device error: %v", stage, err)
	if reliability.CategoryDevice.UserVisible() {
		e.listener.OnError(fmt.Sprintf("%s device unavailable: %v", stage, err))
	}
}

func (e *Engine) setState(gen int64, st session.State) {
	e.mu.Lock()
	if e.gen != gen || e.sess == nil || e.state == st {
		e.mu.Unlock()
		return
	}
	e.state = st
	e.mu.Unlock()
	e.listener.OnStateChange(st)
}

func (e *Engine) isCurrent(gen int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen && e.sess != nil
}
