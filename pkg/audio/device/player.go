package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/MrWong99/krishi/pkg/audio"
)

// playerTool describes one playback program.
type playerTool struct {
	name string
	args []string
	mp3  bool // plays MP3 directly; otherwise clips are converted to WAV first
}

var linuxPlayers = []playerTool{
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "error"}, mp3: true},
	{name: "mpg123", args: []string{"-q"}, mp3: true},
	{name: "paplay"},
	{name: "aplay", args: []string{"-q"}},
	{name: "play", args: []string{"-q"}},
}

var darwinPlayers = []playerTool{
	{name: "afplay", mp3: true},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "error"}, mp3: true},
}

// Player plays clips by running an external program on a temporary file.
type Player struct {
	tool   playerTool
	tmpDir string
}

var _ audio.Player = (*Player)(nil)

// PlayerOption is a functional option for [NewPlayer].
type PlayerOption func(*playerConfig)

type playerConfig struct {
	program string
	tmpDir  string
	goos    string
}

// WithPlayerProgram forces a specific playback program.
func WithPlayerProgram(name string) PlayerOption {
	return func(c *playerConfig) { c.program = name }
}

// WithTempDir sets the directory used for temporary audio files.
func WithTempDir(dir string) PlayerOption {
	return func(c *playerConfig) { c.tmpDir = dir }
}

// NewPlayer returns a Player using the first suitable program found on PATH
// for the current OS.
func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := playerConfig{goos: runtime.GOOS}
	for _, o := range opts {
		o(&cfg)
	}
	tool, err := selectPlayer(cfg.goos, cfg.program)
	if err != nil {
		return nil, err
	}
	return &Player{tool: tool, tmpDir: cfg.tmpDir}, nil
}

// Program returns the playback program in use.
func (p *Player) Program() string { return p.tool.name }

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, c *audio.Clip) error {
	if c == nil || len(c.Data) == 0 {
		return fmt.Errorf("device: empty clip")
	}

	src := c
	if c.Encoding == audio.EncodingMP3 && !p.tool.mp3 {
		wav, err := audio.ToWAV(c)
		if err != nil {
			return fmt.Errorf("device: convert for %s: %w", p.tool.name, err)
		}
		defer wav.Release()
		src = wav
	}

	path, err := src.File(p.tmpDir)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.tool.name, append(append([]string{}, p.tool.args...), path)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("device: %s: %w: %s", p.tool.name, err, msg)
		}
		return fmt.Errorf("device: %s: %w", p.tool.name, err)
	}
	return nil
}

// selectPlayer picks the playback tool for goos. A forced program must be
// one of the known tools for that OS.
func selectPlayer(goos, program string) (playerTool, error) {
	var candidates []playerTool
	switch goos {
	case "darwin":
		candidates = darwinPlayers
	case "linux", "freebsd", "openbsd", "netbsd":
		candidates = linuxPlayers
	default:
		return playerTool{}, fmt.Errorf("device: unsupported OS %q", goos)
	}

	if program != "" {
		for _, t := range candidates {
			if t.name == program {
				return t, nil
			}
		}
		return playerTool{}, fmt.Errorf("device: unsupported playback program %q on %s", program, goos)
	}

	names := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if _, err := lookPath(t.name); err == nil {
			return t, nil
		}
		names = append(names, t.name)
	}
	return playerTool{}, fmt.Errorf("%w (tried %s)", ErrNoTool, strings.Join(names, ", "))
}
