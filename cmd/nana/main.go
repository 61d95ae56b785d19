package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danghoangsqtt-sys/nana-app/internal/audio"
	"github.com/danghoangsqtt-sys/nana-app/internal/config"
	"github.com/danghoangsqtt-sys/nana-app/internal/engine"
	"github.com/danghoangsqtt-sys/nana-app/internal/httpapi"
	"github.com/danghoangsqtt-sys/nana-app/internal/observability"
	"github.com/danghoangsqtt-sys/nana-app/internal/protocol"
	"github.com/danghoangsqtt-sys/nana-app/internal/session"
	"github.com/danghoangsqtt-sys/nana-app/internal/transport"
)

// messageLog is the daemon's engine listener: it mirrors engine events to
// the process log and keeps the run's finalized transcript for /v1/messages.
type messageLog struct {
	mu       sync.Mutex
	messages []engine.ChatMessage
}

func (l *messageLog) OnStateChange(st session.State) {
	log.Printf("state: %s", st)
}

func (l *messageLog) OnVolumeChange(float64) {}

func (l *messageLog) OnTranscript(text string, dir protocol.Direction, final bool) {
	if !final {
		return
	}
	l.mu.Lock()
	l.messages = append(l.messages, engine.ChatMessage{
		Role:      dir,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	l.mu.Unlock()
	log.Printf("%s: %s", dir, text)
}

func (l *messageLog) OnError(msg string) {
	log.Printf("session error: %s", msg)
}

func (l *messageLog) OnDisconnect() {
	log.Printf("session disconnected")
}

func (l *messageLog) Messages() []engine.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]engine.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	listener := &messageLog{}

	captureDev := audio.NewFFmpegCapture(cfg.FFmpegPath, cfg.CaptureSampleRate, cfg.FrameBytes)
	playbackDev := audio.NewFFPlayDevice(cfg.FFplayPath, cfg.FFplayVolume)

	dial := func(ctx context.Context, tools []protocol.ToolDecl) (engine.Transport, error) {
		setup := protocol.Setup{
			Model:             cfg.Model,
			SystemInstruction: cfg.ResolvedInstruction(),
			Voice:             cfg.VoiceName,
			InputSampleRate:   cfg.CaptureSampleRate,
			OutputSampleRate:  cfg.PlaybackSampleRate,
		}
		if cfg.ToolsEnabled() {
			setup.Tools = tools
		}
		return transport.Dial(ctx, transport.Config{
			URL:    cfg.LiveURL,
			APIKey: cfg.APIKey,
		}, setup)
	}

	eng := engine.New(engine.Config{
		Sensitivity:        cfg.VoiceSensitivity,
		CaptureMode:        cfg.CaptureMode,
		CaptureSampleRate:  cfg.CaptureSampleRate,
		PlaybackSampleRate: cfg.PlaybackSampleRate,
		BargeInFrames:      cfg.BargeInFrames,
		FirstAudioSLO:      cfg.FirstAudioSLO,
	}, dial, captureDev, playbackDev, engine.NewToolDispatcher(), listener, metrics)

	if cfg.ToolsEnabled() {
		registerBuiltinTools(eng)
	}
	log.Printf("mode: %s (tools enabled: %v)", cfg.Mode, cfg.ToolsEnabled())

	api := httpapi.New(cfg, eng, listener, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("status server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := eng.Connect(connectCtx); err != nil {
		// The daemon stays up so /v1/status reflects the failure; a client
		// can retry by restarting once the endpoint is reachable.
		log.Printf("live session connect failed: %v", err)
	}
	connectCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	eng.Disconnect()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
