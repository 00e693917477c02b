package config

import (
	"reflect"
	"slices"

	"github.com/MrWong99/krishi/internal/advisor"
)

// ConfigDiff describes what changed between two configs. The log level and
// the preset questions can be applied to a running process; every other
// changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PresetsChanged bool
	NewPresets     []advisor.Category

	// RestartRequired names the top-level sections whose changes take
	// effect only after a restart, e.g. "providers.llm" or "advisor".
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PresetsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.EqualFunc(old.Presets, new.Presets, func(a, b advisor.Category) bool {
		return a.Name == b.Name && slices.Equal(a.Questions, b.Questions)
	}) {
		d.PresetsChanged = true
		d.NewPresets = slices.Clone(new.Presets)
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.Console != new.Server.Console {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	for _, p := range []struct {
		name     string
		old, new ProviderEntry
	}{
		{"providers.llm", old.Providers.LLM, new.Providers.LLM},
		{"providers.stt", old.Providers.STT, new.Providers.STT},
		{"providers.tts", old.Providers.TTS, new.Providers.TTS},
		{"providers.recorder", old.Providers.Recorder, new.Providers.Recorder},
		{"providers.player", old.Providers.Player, new.Providers.Player},
	} {
		if !reflect.DeepEqual(p.old, p.new) {
			d.RestartRequired = append(d.RestartRequired, p.name)
		}
	}
	if old.Advisor != new.Advisor {
		d.RestartRequired = append(d.RestartRequired, "advisor")
	}

	return d
}
