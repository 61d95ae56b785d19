package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the engine.
type Metrics struct {
	SessionEvents     *prometheus.CounterVec
	CaptureFrames     *prometheus.CounterVec
	PlaybackChunks    *prometheus.CounterVec
	ToolCalls         *prometheus.CounterVec
	Interruptions     *prometheus.CounterVec
	FirstAudioLatency prometheus.Histogram

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		CaptureFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_total",
			Help:      "Microphone frames by gate outcome.",
		}, []string{"outcome"}),
		PlaybackChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_chunks_total",
			Help:      "Response audio chunks by playback outcome.",
		}, []string{"outcome"}),
		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Remote tool invocations by name and outcome.",
		}, []string{"tool", "outcome"}),
		Interruptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Barge-in events by trigger source.",
		}, []string{"source"}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from user turn end to first response audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		latency: newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	ms := float64(d.Milliseconds())
	m.FirstAudioLatency.Observe(ms)
	m.latency.Observe("first_audio", ms)
}

// ObserveStageLatency records a latency sample into the rolling window
// surfaced on the status endpoint.
func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	m.latency.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) LatencySnapshot() LatencySnapshot {
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
