package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/krishi/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level change should not need a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_PresetsChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Presets[1].Questions[0] = "Gehu me DAP kab dale?"

	d := config.Diff(old, new)
	if !d.PresetsChanged {
		t.Fatal("expected PresetsChanged=true")
	}
	if d.NewPresets[1].Questions[0] != "Gehu me DAP kab dale?" {
		t.Errorf("NewPresets not taken from new config: %+v", d.NewPresets[1])
	}
}

func TestDiff_PresetRemoved(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Presets = new.Presets[:3]

	if d := config.Diff(old, new); !d.PresetsChanged || len(d.NewPresets) != 3 {
		t.Errorf("diff = %+v, want presets changed to 3 categories", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.ListenAddr = ":9999"
	new.Providers.LLM.Model = "gemini-2.0-flash"
	new.Providers.TTS.Options = map[string]any{"tld": "co.in"}
	new.Advisor.RequestTimeout = 10 * time.Second

	d := config.Diff(old, new)
	want := []string{"server", "providers.llm", "providers.tts", "advisor"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.LogLevelChanged || d.PresetsChanged {
		t.Errorf("unexpected hot changes: %+v", d)
	}
	if !d.Changed() {
		t.Error("Changed() = false")
	}
}
