package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/krishi/internal/advisor"
	"github.com/MrWong99/krishi/internal/config"
	"github.com/MrWong99/krishi/pkg/audio"
	audiomock "github.com/MrWong99/krishi/pkg/audio/mock"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	llmmock "github.com/MrWong99/krishi/pkg/provider/llm/mock"
	"github.com/MrWong99/krishi/pkg/provider/stt"
	sttmock "github.com/MrWong99/krishi/pkg/provider/stt/mock"
	"github.com/MrWong99/krishi/pkg/provider/tts"
	ttsmock "github.com/MrWong99/krishi/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  console: true

providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: whisper
    base_url: http://localhost:8081
    options:
      language: hi
      silence_gate: true
  tts:
    name: coqui
    base_url: http://localhost:5002
    options:
      api_mode: xtts
      timeout_seconds: 15
  recorder:
    name: device
    options:
      program: arecord
  player:
    name: device

advisor:
  stt_language: hi-IN
  tts_language: hi
  capture_seconds: 7.5
  sample_rate: 22050
  playback_policy: overlap
  persona: Tum ek kheti salahkar ho.
  request_timeout: 30s
  temperature: 0.4
  max_tokens: 512
  voice:
    id: farmer-f1
    speed: 0.9
  breaker:
    max_failures: 3
    reset_timeout: 1m

presets:
  - category: Irrigation
    questions:
      - Drip irrigation kaise lagaye?
      - Paani kitni baar dena chahiye?
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if !cfg.Server.Console || !cfg.Server.HTTPEnabled() {
		t.Errorf("server: console=%v http=%v, want both enabled", cfg.Server.Console, cfg.Server.HTTPEnabled())
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.APIKey != "sk-test" {
		t.Errorf("providers.llm: got %+v", cfg.Providers.LLM)
	}
	if got := cfg.Providers.STT.OptString("language"); got != "hi" {
		t.Errorf("providers.stt.options.language: got %q, want hi", got)
	}
	if !cfg.Providers.STT.OptBool("silence_gate") {
		t.Error("providers.stt.options.silence_gate: got false, want true")
	}
	if got := cfg.Providers.TTS.OptInt("timeout_seconds"); got != 15 {
		t.Errorf("providers.tts.options.timeout_seconds: got %d, want 15", got)
	}

	a := cfg.Advisor
	if a.STTLanguage != "hi-IN" || a.TTSLanguage != "hi" {
		t.Errorf("advisor languages: got %q/%q", a.STTLanguage, a.TTSLanguage)
	}
	if got := a.CaptureDuration(); got != 7500*time.Millisecond {
		t.Errorf("advisor.capture_seconds: got %s, want 7.5s", got)
	}
	if a.SampleRate != 22050 || a.PlaybackPolicy != "overlap" {
		t.Errorf("advisor: sample_rate=%d policy=%q", a.SampleRate, a.PlaybackPolicy)
	}
	if a.RequestTimeout != 30*time.Second {
		t.Errorf("advisor.request_timeout: got %s, want 30s", a.RequestTimeout)
	}
	if a.Voice.ID != "farmer-f1" || a.Voice.Speed != 0.9 {
		t.Errorf("advisor.voice: got %+v", a.Voice)
	}
	if a.Breaker.MaxFailures != 3 || a.Breaker.ResetTimeout != time.Minute {
		t.Errorf("advisor.breaker: got %+v", a.Breaker)
	}
	if len(cfg.Presets) != 1 || cfg.Presets[0].Name != "Irrigation" || len(cfg.Presets[0].Questions) != 2 {
		t.Errorf("presets: got %+v", cfg.Presets)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	// Not parallel: clears API key environment variables.
	t.Setenv("GEMINI_API_KEY", "")

	for _, in := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(in))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): unexpected error: %v", in, err)
		}
		if cfg.Server.ListenAddr != config.DefaultListenAddr || cfg.Server.LogLevel != config.LogInfo {
			t.Errorf("server defaults: got %+v", cfg.Server)
		}
		if cfg.Providers.LLM.Name != config.DefaultLLM || cfg.Providers.LLM.Model != config.DefaultLLMModel {
			t.Errorf("llm defaults: got %+v", cfg.Providers.LLM)
		}
		if cfg.Providers.TTS.Name != config.DefaultTTS || cfg.Providers.Player.Name != config.DefaultDevice {
			t.Errorf("tts/player defaults: got %q/%q", cfg.Providers.TTS.Name, cfg.Providers.Player.Name)
		}
		if cfg.Providers.STT.Name != "" || cfg.Providers.Recorder.Name != "" {
			t.Errorf("voice input should stay disabled by default, got stt=%q recorder=%q",
				cfg.Providers.STT.Name, cfg.Providers.Recorder.Name)
		}
		a := cfg.Advisor
		if a.STTLanguage != "en-IN" || a.TTSLanguage != "en" {
			t.Errorf("language defaults: got %q/%q", a.STTLanguage, a.TTSLanguage)
		}
		if a.CaptureDuration() != 5*time.Second || a.SampleRate != 16000 {
			t.Errorf("capture defaults: got %s at %d Hz", a.CaptureDuration(), a.SampleRate)
		}
		if a.PlaybackPolicy != string(advisor.PolicySerialize) || a.RequestTimeout != advisor.DefaultRequestTimeout {
			t.Errorf("policy/timeout defaults: got %q/%s", a.PlaybackPolicy, a.RequestTimeout)
		}
		if len(cfg.Presets) != 5 {
			t.Errorf("presets default: got %d categories, want 5", len(cfg.Presets))
		}
	}
}

func TestApplyDefaults_RecorderFollowsSTT(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Providers: config.ProvidersConfig{STT: config.ProviderEntry{Name: "whisper"}}}
	config.ApplyDefaults(cfg)
	if cfg.Providers.Recorder.Name != config.DefaultDevice {
		t.Errorf("recorder: got %q, want %q", cfg.Providers.Recorder.Name, config.DefaultDevice)
	}
}

func TestApplyDefaults_APIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-env")
	t.Setenv("DEEPGRAM_API_KEY", "dg-env")
	t.Setenv("ELEVENLABS_API_KEY", "el-env")

	cfg := &config.Config{Providers: config.ProvidersConfig{
		STT: config.ProviderEntry{Name: "deepgram"},
		TTS: config.ProviderEntry{Name: "elevenlabs", APIKey: "el-explicit"},
	}}
	config.ApplyDefaults(cfg)

	if cfg.Providers.LLM.APIKey != "g-env" {
		t.Errorf("llm api key: got %q, want g-env", cfg.Providers.LLM.APIKey)
	}
	if cfg.Providers.STT.APIKey != "dg-env" {
		t.Errorf("stt api key: got %q, want dg-env", cfg.Providers.STT.APIKey)
	}
	if cfg.Providers.TTS.APIKey != "el-explicit" {
		t.Errorf("explicit tts api key was overwritten: got %q", cfg.Providers.TTS.APIKey)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen: \":80\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "krishi.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.TTS.OptString("api_mode") != "xtts" {
		t.Errorf("tts options not loaded: %+v", cfg.Providers.TTS.Options)
	}

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing file: got %v, want os.ErrNotExist", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    config.LogLevel
		valid bool
		level slog.Level
	}{
		{config.LogDebug, true, slog.LevelDebug},
		{config.LogInfo, true, slog.LevelInfo},
		{config.LogWarn, true, slog.LevelWarn},
		{config.LogError, true, slog.LevelError},
		{"verbose", false, slog.LevelInfo},
		{"", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.in.IsValid(); got != tt.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tt.in, got, tt.valid)
		}
		if got := tt.in.Level(); got != tt.level {
			t.Errorf("%q.Level() = %v, want %v", tt.in, got, tt.level)
		}
	}
}

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{
		"s": "x", "i": 4, "f": 2.0, "frac": 2.5, "b": true,
	}}
	if e.OptString("s") != "x" || e.OptString("i") != "" || e.OptString("missing") != "" {
		t.Error("OptString mismatch")
	}
	if e.OptInt("i") != 4 || e.OptInt("f") != 2 || e.OptInt("frac") != 0 || e.OptInt("s") != 0 {
		t.Error("OptInt mismatch")
	}
	if !e.OptBool("b") || e.OptBool("s") {
		t.Error("OptBool mismatch")
	}
	var empty config.ProviderEntry
	if empty.OptString("s") != "" || empty.OptInt("i") != 0 || empty.OptBool("b") {
		t.Error("nil Options should yield zero values")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nonexistent"}

	_, errLLM := reg.CreateLLM(entry)
	_, errSTT := reg.CreateSTT(entry)
	_, errTTS := reg.CreateTTS(entry)
	_, errRec := reg.CreateRecorder(entry)
	_, errPlay := reg.CreatePlayer(entry)

	for kind, err := range map[string]error{
		"llm": errLLM, "stt": errSTT, "tts": errTTS, "recorder": errRec, "player": errPlay,
	} {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: expected ErrProviderNotRegistered, got: %v", kind, err)
		}
		if err != nil && !strings.Contains(err.Error(), kind+`/"nonexistent"`) {
			t.Errorf("%s: error should name kind and provider, got: %v", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	wantLLM := &llmmock.Provider{}
	wantSTT := &sttmock.Provider{}
	wantTTS := &ttsmock.Provider{}
	wantRec := &audiomock.Recorder{}
	wantPlay := &audiomock.Player{}

	var gotEntry config.ProviderEntry
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return wantLLM, nil
	})
	reg.RegisterSTT("stub", func(config.ProviderEntry) (stt.Provider, error) { return wantSTT, nil })
	reg.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) { return wantTTS, nil })
	reg.RegisterRecorder("stub", func(config.ProviderEntry) (audio.Recorder, error) { return wantRec, nil })
	reg.RegisterPlayer("stub", func(config.ProviderEntry) (audio.Player, error) { return wantPlay, nil })

	entry := config.ProviderEntry{Name: "stub", Model: "m1"}
	if got, err := reg.CreateLLM(entry); err != nil || got != wantLLM {
		t.Errorf("CreateLLM = %v, %v", got, err)
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory received entry %+v", gotEntry)
	}
	if got, err := reg.CreateSTT(entry); err != nil || got != wantSTT {
		t.Errorf("CreateSTT = %v, %v", got, err)
	}
	if got, err := reg.CreateTTS(entry); err != nil || got != wantTTS {
		t.Errorf("CreateTTS = %v, %v", got, err)
	}
	if got, err := reg.CreateRecorder(entry); err != nil || got != wantRec {
		t.Errorf("CreateRecorder = %v, %v", got, err)
	}
	if got, err := reg.CreatePlayer(entry); err != nil || got != wantPlay {
		t.Errorf("CreatePlayer = %v, %v", got, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, name := range []string{"openai", "gemini", "anthropic"} {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	}
	if got, want := reg.Names(config.KindLLM), []string{"anthropic", "gemini", "openai"}; !slices.Equal(got, want) {
		t.Errorf("Names(llm) = %v, want %v", got, want)
	}
	if got := reg.Names(config.KindTTS); len(got) != 0 {
		t.Errorf("Names(tts) = %v, want empty", got)
	}
	if got := reg.Names("bogus"); got != nil {
		t.Errorf("Names(bogus) = %v, want nil", got)
	}
}
