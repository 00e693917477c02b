package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/krishi/internal/advisor"
	"github.com/MrWong99/krishi/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "server:\n  log_level: bananas\n", "server.log_level"},
		{"capture too long", "advisor:\n  capture_seconds: 120\n", "advisor.capture_seconds"},
		{"negative capture", "advisor:\n  capture_seconds: -1\n", "advisor.capture_seconds"},
		{"sample rate", "advisor:\n  sample_rate: 12345\n", "advisor.sample_rate"},
		{"policy", "advisor:\n  playback_policy: shuffle\n", "advisor.playback_policy"},
		{"timeout", "advisor:\n  request_timeout: -5s\n", "advisor.request_timeout"},
		{"temperature", "advisor:\n  temperature: 3\n", "advisor.temperature"},
		{"max tokens", "advisor:\n  max_tokens: -1\n", "advisor.max_tokens"},
		{"voice speed", "advisor:\n  voice:\n    speed: 3\n", "advisor.voice.speed"},
		{"breaker", "advisor:\n  breaker:\n    max_failures: -2\n", "advisor.breaker.max_failures"},
		{"preset category", "presets:\n  - questions: [a]\n", "presets[0].category is required"},
		{"preset questions", "presets:\n  - category: Soil\n", "presets[0].questions must not be empty"},
		{"blank question", "presets:\n  - category: Soil\n    questions: [\"  \"]\n", "presets[0].questions[0] is blank"},
		{"duplicate category", "presets:\n  - category: Soil\n    questions: [a]\n  - category: Soil\n    questions: [b]\n", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MissingLLM(t *testing.T) {
	t.Parallel()
	err := config.Validate(&config.Config{})
	if err == nil || !strings.Contains(err.Error(), "providers.llm.name is required") {
		t.Errorf("Validate(empty) = %v, want llm required", err)
	}
}

func TestValidate_STTWithoutRecorder(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM: config.ProviderEntry{Name: "gemini"},
		STT: config.ProviderEntry{Name: "whisper"},
	}}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.recorder") {
		t.Errorf("Validate = %v, want recorder error", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: extreme
advisor:
  playback_policy: random
  sample_rate: 1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "advisor.playback_policy", "advisor.sample_rate"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error missing %q: %v", want, msg)
		}
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if err := config.Validate(&config.Config{
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "gemini"}},
		Presets:   advisor.DefaultPresets(),
	}); err != nil {
		t.Errorf("default presets should validate: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []config.Kind{config.KindLLM, config.KindSTT, config.KindTTS, config.KindRecorder, config.KindPlayer} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
	for kind, name := range map[config.Kind]string{
		config.KindLLM: config.DefaultLLM,
		config.KindTTS: config.DefaultTTS,
	} {
		found := false
		for _, n := range config.ValidProviderNames[kind] {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("default %s provider %q is not a known name", kind, name)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.STT.Name != "whisper" || !cfg.Providers.STT.OptBool("silence_gate") {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if cfg.Advisor.PlaybackPolicy != string(advisor.PolicySerialize) {
		t.Errorf("playback_policy = %q", cfg.Advisor.PlaybackPolicy)
	}
	if len(cfg.Presets) != len(advisor.DefaultPresets()) {
		t.Errorf("presets = %d categories, want the built-in set", len(cfg.Presets))
	}
}
