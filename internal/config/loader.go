package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/krishi/internal/advisor"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr = ":8080"
	DefaultLLM        = "gemini"
	DefaultLLMModel   = "gemini-1.5-flash"
	DefaultTTS        = "gtranslate"
	DefaultDevice     = "device"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[Kind][]string{
	KindLLM:      {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	KindSTT:      {"whisper", "whisper-native", "deepgram"},
	KindTTS:      {"gtranslate", "elevenlabs", "coqui"},
	KindRecorder: {"device"},
	KindPlayer:   {"device"},
}

// apiKeyEnv maps provider names to the environment variable consulted when
// the entry has no api_key.
var apiKeyEnv = map[string]string{
	"gemini":     "GEMINI_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"deepgram":   "DEEPGRAM_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

// sampleRates lists the capture rates the STT backends accept.
var sampleRates = []int{8000, 16000, 22050, 24000, 44100, 48000}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default and resolves
// empty API keys from the environment.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	p := &cfg.Providers
	if p.LLM.Name == "" {
		p.LLM.Name = DefaultLLM
		if p.LLM.Model == "" {
			p.LLM.Model = DefaultLLMModel
		}
	}
	if p.TTS.Name == "" {
		p.TTS.Name = DefaultTTS
	}
	if p.Recorder.Name == "" && p.STT.Name != "" {
		p.Recorder.Name = DefaultDevice
	}
	if p.Player.Name == "" {
		p.Player.Name = DefaultDevice
	}
	for _, e := range []*ProviderEntry{&p.LLM, &p.STT, &p.TTS} {
		if e.APIKey != "" {
			continue
		}
		if env, ok := apiKeyEnv[e.Name]; ok {
			e.APIKey = os.Getenv(env)
		}
	}

	a := &cfg.Advisor
	if a.STTLanguage == "" {
		a.STTLanguage = advisor.DefaultSTTLanguage
	}
	if a.TTSLanguage == "" {
		a.TTSLanguage = advisor.DefaultTTSLanguage
	}
	if a.CaptureSeconds == 0 {
		a.CaptureSeconds = advisor.DefaultCaptureDuration.Seconds()
	}
	if a.SampleRate == 0 {
		a.SampleRate = advisor.DefaultSampleRate
	}
	if a.PlaybackPolicy == "" {
		a.PlaybackPolicy = string(advisor.PolicySerialize)
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = advisor.DefaultRequestTimeout
	}

	if len(cfg.Presets) == 0 {
		cfg.Presets = advisor.DefaultPresets()
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.Recorder.Name == "" {
		errs = append(errs, errors.New("providers.stt is configured but providers.recorder is not"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; voice questions are disabled")
	}
	for kind, e := range map[Kind]ProviderEntry{
		KindLLM:      cfg.Providers.LLM,
		KindSTT:      cfg.Providers.STT,
		KindTTS:      cfg.Providers.TTS,
		KindRecorder: cfg.Providers.Recorder,
		KindPlayer:   cfg.Providers.Player,
	} {
		warnUnknownProvider(kind, e.Name)
	}

	a := cfg.Advisor
	if a.CaptureSeconds < 0 || a.CaptureSeconds > 60 {
		errs = append(errs, fmt.Errorf("advisor.capture_seconds %.1f is out of range [0, 60]", a.CaptureSeconds))
	}
	if a.SampleRate != 0 && !slices.Contains(sampleRates, a.SampleRate) {
		errs = append(errs, fmt.Errorf("advisor.sample_rate %d is not supported; valid values: %v", a.SampleRate, sampleRates))
	}
	if a.PlaybackPolicy != "" {
		if _, err := advisor.ParsePlaybackPolicy(a.PlaybackPolicy); err != nil {
			errs = append(errs, fmt.Errorf("advisor.playback_policy: %w", err))
		}
	}
	if a.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("advisor.request_timeout %s must not be negative", a.RequestTimeout))
	}
	if a.STTTimeout < 0 {
		errs = append(errs, fmt.Errorf("advisor.stt_timeout %s must not be negative", a.STTTimeout))
	}
	if a.SynthesisTimeout < 0 {
		errs = append(errs, fmt.Errorf("advisor.synthesis_timeout %s must not be negative", a.SynthesisTimeout))
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, fmt.Errorf("advisor.temperature %.2f is out of range [0, 2]", a.Temperature))
	}
	if a.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("advisor.max_tokens %d must not be negative", a.MaxTokens))
	}
	if a.Voice.Speed != 0 && (a.Voice.Speed < 0.5 || a.Voice.Speed > 2.0) {
		errs = append(errs, fmt.Errorf("advisor.voice.speed %.2f is out of range [0.5, 2.0]", a.Voice.Speed))
	}
	if a.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("advisor.breaker.max_failures %d must not be negative", a.Breaker.MaxFailures))
	}
	if a.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("advisor.breaker.reset_timeout %s must not be negative", a.Breaker.ResetTimeout))
	}

	errs = append(errs, validatePresets(cfg.Presets)...)

	return errors.Join(errs...)
}

func validatePresets(presets []advisor.Category) []error {
	var errs []error
	seen := make(map[string]int, len(presets))
	for i, c := range presets {
		prefix := fmt.Sprintf("presets[%d]", i)
		name := strings.TrimSpace(c.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.category is required", prefix))
		} else {
			if prev, ok := seen[name]; ok {
				errs = append(errs, fmt.Errorf("%s.category %q is a duplicate of presets[%d]", prefix, name, prev))
			}
			seen[name] = i
		}
		if len(c.Questions) == 0 {
			errs = append(errs, fmt.Errorf("%s.questions must not be empty", prefix))
		}
		for j, q := range c.Questions {
			if strings.TrimSpace(q) == "" {
				errs = append(errs, fmt.Errorf("%s.questions[%d] is blank", prefix, j))
			}
		}
	}
	return errs
}

// warnUnknownProvider logs a warning if name is non-empty and not listed in
// [ValidProviderNames] for kind.
func warnUnknownProvider(kind Kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
