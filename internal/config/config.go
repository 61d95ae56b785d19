package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeAssistant  = "assistant"
	ModeTranslator = "translator"

	CaptureModeGate      = "gate"
	CaptureModeServerVAD = "server_vad"

	// MaxSensitivity bounds the voice sensitivity knob; the noise-gate
	// threshold is (MaxSensitivity - sensitivity) * GateScale.
	MaxSensitivity = 2.0
	GateScale      = 10.0
)

// Config contains all runtime settings for the voice client.
type Config struct {
	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration

	LiveURL   string
	APIKey    string
	Model     string
	VoiceName string

	Mode              string
	SystemInstruction string
	TranslationLangA  string
	TranslationLangB  string

	VoiceSensitivity   float64
	CaptureMode        string
	CaptureSampleRate  int
	PlaybackSampleRate int
	FrameBytes         int
	BargeInFrames      int

	FirstAudioSLO time.Duration

	FFmpegPath   string
	FFplayPath   string
	FFplayVolume int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("NANA_BIND_ADDR", ":8090"),
		MetricsNamespace: envOrDefault("NANA_METRICS_NAMESPACE", "nana"),
		ShutdownTimeout:  10 * time.Second,
		LiveURL:          envOrDefault("NANA_LIVE_URL", "wss://live.nana.local/v1/session"),
		APIKey:           strings.TrimSpace(os.Getenv("NANA_API_KEY")),
		Model:            envOrDefault("NANA_MODEL", "nana-speech-native-audio"),
		VoiceName:        envOrDefault("NANA_VOICE", "Zephyr"),
		Mode:             envOrDefault("NANA_MODE", ModeAssistant),
		// Default persona for the companion prototype.
		SystemInstruction:  envOrDefault("NANA_SYSTEM_INSTRUCTION", "You are NaNa, a helpful AI."),
		TranslationLangA:   envOrDefault("NANA_TRANSLATION_LANG_A", "English"),
		TranslationLangB:   envOrDefault("NANA_TRANSLATION_LANG_B", "Spanish"),
		VoiceSensitivity:   1.5,
		CaptureMode:        envOrDefault("NANA_CAPTURE_MODE", CaptureModeGate),
		CaptureSampleRate:  16000,
		PlaybackSampleRate: 24000,
		FrameBytes:         4096,
		BargeInFrames:      3,
		FirstAudioSLO:      700 * time.Millisecond,
		FFmpegPath:         envOrDefault("NANA_FFMPEG_PATH", "ffmpeg"),
		FFplayPath:         envOrDefault("NANA_FFPLAY_PATH", "ffplay"),
		FFplayVolume:       80,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("NANA_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FirstAudioSLO, err = durationFromEnv("NANA_FIRST_AUDIO_SLO", cfg.FirstAudioSLO)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceSensitivity, err = floatFromEnv("NANA_VOICE_SENSITIVITY", cfg.VoiceSensitivity)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureSampleRate, err = intFromEnv("NANA_CAPTURE_SAMPLE_RATE", cfg.CaptureSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackSampleRate, err = intFromEnv("NANA_PLAYBACK_SAMPLE_RATE", cfg.PlaybackSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameBytes, err = intFromEnv("NANA_FRAME_BYTES", cfg.FrameBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.BargeInFrames, err = intFromEnv("NANA_BARGE_IN_FRAMES", cfg.BargeInFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.FFplayVolume, err = intFromEnv("NANA_FFPLAY_VOLUME", cfg.FFplayVolume)
	if err != nil {
		return Config{}, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != ModeAssistant && cfg.Mode != ModeTranslator {
		return Config{}, fmt.Errorf("NANA_MODE must be %q or %q", ModeAssistant, ModeTranslator)
	}
	cfg.CaptureMode = strings.ToLower(strings.TrimSpace(cfg.CaptureMode))
	if cfg.CaptureMode != CaptureModeGate && cfg.CaptureMode != CaptureModeServerVAD {
		return Config{}, fmt.Errorf("NANA_CAPTURE_MODE must be %q or %q", CaptureModeGate, CaptureModeServerVAD)
	}
	if cfg.VoiceSensitivity < 0 || cfg.VoiceSensitivity > MaxSensitivity {
		return Config{}, fmt.Errorf("NANA_VOICE_SENSITIVITY must be in [0, %v]", MaxSensitivity)
	}
	if cfg.CaptureSampleRate <= 0 || cfg.PlaybackSampleRate <= 0 {
		return Config{}, fmt.Errorf("sample rates must be positive")
	}
	if cfg.FrameBytes <= 0 {
		return Config{}, fmt.Errorf("NANA_FRAME_BYTES must be positive")
	}
	if cfg.BargeInFrames < 0 {
		return Config{}, fmt.Errorf("NANA_BARGE_IN_FRAMES must be >= 0")
	}

	return cfg, nil
}

// ResolvedInstruction composes the persona instruction for the active mode.
// Translator mode replaces the persona with an interpreter instruction built
// from the two configured languages.
func (c Config) ResolvedInstruction() string {
	if c.Mode == ModeTranslator {
		return fmt.Sprintf(
			"You are a professional, real-time bi-directional interpreter between %s and %s. Translate spoken audio instantly. Do not chat.",
			c.TranslationLangA, c.TranslationLangB,
		)
	}
	return c.SystemInstruction
}

// ToolsEnabled reports whether tool declarations are sent at setup.
// Translator mode runs without tools.
func (c Config) ToolsEnabled() bool {
	return c.Mode == ModeAssistant
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
