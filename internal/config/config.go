// Package config provides the configuration schema, loader, hot-reload
// watcher, and provider registry for the Krishi Sahayak advisor.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/krishi/internal/advisor"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its slog level. Unknown or empty levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Providers ProvidersConfig    `yaml:"providers"`
	Advisor   AdvisorConfig      `yaml:"advisor"`
	Presets   []advisor.Category `yaml:"presets"`
}

// ServerConfig holds network, logging, and surface settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP API (e.g., ":8080").
	// Set it to "-" to disable the HTTP API.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// Console enables the interactive REPL on stdin/stdout.
	Console bool `yaml:"console"`
}

// HTTPEnabled reports whether the HTTP API should be started.
func (s ServerConfig) HTTPEnabled() bool { return s.ListenAddr != "-" }

// ProvidersConfig selects the implementation used for each pipeline stage.
// Each entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	LLM      ProviderEntry `yaml:"llm"`
	STT      ProviderEntry `yaml:"stt"`
	TTS      ProviderEntry `yaml:"tts"`
	Recorder ProviderEntry `yaml:"recorder"`
	Player   ProviderEntry `yaml:"player"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "gemini", "whisper").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted backends. When empty, the
	// backend's conventional environment variable is consulted by
	// [ApplyDefaults].
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g., "gemini-1.5-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// OptString returns Options[key] if it is a string, otherwise "".
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt returns Options[key] as an int. YAML integers and whole floats are
// accepted; anything else yields 0.
func (e ProviderEntry) OptInt(key string) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// OptBool returns Options[key] if it is a bool, otherwise false.
func (e ProviderEntry) OptBool(key string) bool {
	b, _ := e.Options[key].(bool)
	return b
}

// AdvisorConfig tunes the conversation pipeline.
type AdvisorConfig struct {
	// STTLanguage is the recognition language hint (default "en-IN").
	STTLanguage string `yaml:"stt_language"`

	// TTSLanguage is the synthesis language (default "en").
	TTSLanguage string `yaml:"tts_language"`

	// CaptureSeconds is the length of one voice capture (default 5).
	CaptureSeconds float64 `yaml:"capture_seconds"`

	// SampleRate is the capture sample rate in Hz (default 16000).
	SampleRate int `yaml:"sample_rate"`

	// PlaybackPolicy is "serialize" (default) or "overlap".
	PlaybackPolicy string `yaml:"playback_policy"`

	// Persona replaces the built-in advisor instructions when non-empty.
	Persona string `yaml:"persona"`

	// RequestTimeout bounds each LLM call (default 60s).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// STTTimeout bounds each transcription call. Zero means no extra bound.
	STTTimeout time.Duration `yaml:"stt_timeout"`

	// SynthesisTimeout bounds each TTS call. Zero means no extra bound.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`

	// Temperature and MaxTokens are passed to the LLM. Zero uses the
	// backend default.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Voice   VoiceConfig   `yaml:"voice"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// CaptureDuration returns CaptureSeconds as a duration.
func (a AdvisorConfig) CaptureDuration() time.Duration {
	return time.Duration(a.CaptureSeconds * float64(time.Second))
}

// VoiceConfig specifies the TTS voice.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier. Empty uses the
	// provider default.
	ID string `yaml:"id"`

	// Speed adjusts the speaking rate in [0.5, 2.0]. Zero means default.
	Speed float64 `yaml:"speed"`
}

// BreakerConfig configures the circuit breakers around the STT and LLM
// backends.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}
