package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danghoangsqtt-sys/nana-app/internal/config"
	"github.com/danghoangsqtt-sys/nana-app/internal/engine"
	"github.com/danghoangsqtt-sys/nana-app/internal/observability"
	"github.com/danghoangsqtt-sys/nana-app/internal/session"
)

// EngineStatus is the read-only view of the live engine the status server
// exposes.
type EngineStatus interface {
	State() session.State
	Snapshot() (session.Snapshot, bool)
	CaptureStrategyName() string
}

// MessageSource serves the finalized transcript of the current run. This is
// a display surface, not persistence.
type MessageSource interface {
	Messages() []engine.ChatMessage
}

type Server struct {
	cfg      config.Config
	engine   EngineStatus
	messages MessageSource
	metrics  *observability.Metrics
	started  time.Time
}

func New(cfg config.Config, eng EngineStatus, messages MessageSource, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		engine:   eng,
		messages: messages,
		metrics:  metrics,
		started:  time.Now().UTC(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/messages", s.handleMessages)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   s.cfg.Mode,
	})
}

type captureStatus struct {
	Mode          string  `json:"mode"`
	Sensitivity   float64 `json:"sensitivity"`
	GateThreshold float64 `json:"gate_threshold,omitempty"`
}

type statusResponse struct {
	State           session.State                `json:"state"`
	Mode            string                       `json:"mode"`
	Model           string                       `json:"model"`
	Voice           string                       `json:"voice"`
	UptimeS         int64                        `json:"uptime_s"`
	FirstAudioSLOMS int64                        `json:"first_audio_slo_ms"`
	Capture         captureStatus                `json:"capture"`
	Session         *session.Snapshot            `json:"session,omitempty"`
	Latencies       []observability.LatencyStats `json:"latencies"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State:           s.engine.State(),
		Mode:            s.cfg.Mode,
		Model:           s.cfg.Model,
		Voice:           s.cfg.VoiceName,
		UptimeS:         int64(time.Since(s.started).Seconds()),
		FirstAudioSLOMS: s.cfg.FirstAudioSLO.Milliseconds(),
		Capture: captureStatus{
			Mode:        s.cfg.CaptureMode,
			Sensitivity: s.cfg.VoiceSensitivity,
		},
		Latencies: s.metrics.LatencySnapshot().Stages,
	}
	if name := s.engine.CaptureStrategyName(); name != "" {
		resp.Capture.Mode = name
	}
	if resp.Capture.Mode == config.CaptureModeGate {
		resp.Capture.GateThreshold = (config.MaxSensitivity - s.cfg.VoiceSensitivity) * config.GateScale
	}
	if snap, ok := s.engine.Snapshot(); ok {
		resp.Session = &snap
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, _ *http.Request) {
	msgs := s.messages.Messages()
	if msgs == nil {
		msgs = []engine.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
