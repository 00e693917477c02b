package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/krishi/internal/app"
	"github.com/MrWong99/krishi/internal/config"
	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/audio/device"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	"github.com/MrWong99/krishi/pkg/provider/llm/anyllm"
	"github.com/MrWong99/krishi/pkg/provider/llm/gemini"
	"github.com/MrWong99/krishi/pkg/provider/llm/openai"
	"github.com/MrWong99/krishi/pkg/provider/stt"
	"github.com/MrWong99/krishi/pkg/provider/stt/deepgram"
	"github.com/MrWong99/krishi/pkg/provider/stt/whisper"
	"github.com/MrWong99/krishi/pkg/provider/tts"
	"github.com/MrWong99/krishi/pkg/provider/tts/coqui"
	"github.com/MrWong99/krishi/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/krishi/pkg/provider/tts/gtranslate"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// ctx is only used by SDK clients that need one at construction time.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		return gemini.New(ctx, entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if secs := entry.OptInt("timeout_seconds"); secs > 0 {
			opts = append(opts, openai.WithTimeout(time.Duration(secs)*time.Second))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted backends share one pattern: optional APIKey plus
	// optional BaseURL, served through any-llm-go.
	for _, backend := range []string{"anthropic", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if _, ok := entry.Options["silence_gate"]; ok {
			opts = append(opts, whisper.WithSilenceGate(entry.OptBool("silence_gate")))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := entry.OptInt("threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("gtranslate", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []gtranslate.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtranslate.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, gtranslate.WithLanguage(lang))
		}
		if tld := entry.OptString("tld"); tld != "" {
			opts = append(opts, gtranslate.WithTLD(tld))
		}
		return gtranslate.New(opts...), nil
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := entry.OptString("voice_id"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Audio devices ─────────────────────────────────────────────────────────

	reg.RegisterRecorder("device", func(entry config.ProviderEntry) (audio.Recorder, error) {
		var opts []device.RecorderOption
		if prog := entry.OptString("program"); prog != "" {
			opts = append(opts, device.WithRecorderProgram(prog))
		}
		if dev := entry.OptString("device"); dev != "" {
			opts = append(opts, device.WithInputDevice(dev))
		}
		return device.NewRecorder(opts...)
	})

	reg.RegisterPlayer("device", func(entry config.ProviderEntry) (audio.Player, error) {
		var opts []device.PlayerOption
		if prog := entry.OptString("program"); prog != "" {
			opts = append(opts, device.WithPlayerProgram(prog))
		}
		if dir := entry.OptString("temp_dir"); dir != "" {
			opts = append(opts, device.WithTempDir(dir))
		}
		return device.NewPlayer(opts...)
	})

	for _, kind := range []config.Kind{config.KindLLM, config.KindSTT, config.KindTTS, config.KindRecorder, config.KindPlayer} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
// The LLM is mandatory; a device that cannot be opened (for example a
// missing audio tool on a headless host) only disables that half of voice.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	p := cfg.Providers

	var err error
	if ps.LLM, err = create(config.KindLLM, p.LLM, reg.CreateLLM); err != nil {
		return nil, err
	}
	if ps.LLM == nil {
		return nil, fmt.Errorf("llm provider %q is not available", p.LLM.Name)
	}
	if ps.STT, err = create(config.KindSTT, p.STT, reg.CreateSTT); err != nil {
		return nil, err
	}
	if ps.TTS, err = create(config.KindTTS, p.TTS, reg.CreateTTS); err != nil {
		return nil, err
	}
	if ps.Recorder, err = create(config.KindRecorder, p.Recorder, reg.CreateRecorder); err != nil {
		if !errors.Is(err, device.ErrNoTool) {
			return nil, err
		}
		slog.Warn("voice input disabled", "err", err)
		ps.Recorder, ps.STT = nil, nil
	}
	if ps.Player, err = create(config.KindPlayer, p.Player, reg.CreatePlayer); err != nil {
		if !errors.Is(err, device.ErrNoTool) {
			return nil, err
		}
		slog.Warn("voice output disabled", "err", err)
		ps.Player = nil
	}
	return ps, nil
}

// create builds one provider. An empty name yields the zero value and an
// unregistered name is logged and skipped.
func create[T any](kind config.Kind, entry config.ProviderEntry, fn func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, nil
	}
	v, err := fn(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not available, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name)
	return v, nil
}
